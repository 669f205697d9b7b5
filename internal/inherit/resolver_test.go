package inherit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tivault/docmatch/internal/model"
)

// fakeProvider is an in-memory snapshot for resolver tests.
type fakeProvider struct {
	templates map[string]*model.ImportTemplate
	edges     map[string]*model.InheritanceRelationship
}

func (p *fakeProvider) Template(id string) (*model.ImportTemplate, bool, error) {
	tpl, ok := p.templates[id]
	return tpl, ok, nil
}

func (p *fakeProvider) Relationship(childID string) (*model.InheritanceRelationship, error) {
	return p.edges[childID], nil
}

func newFakeProvider(templates ...*model.ImportTemplate) *fakeProvider {
	p := &fakeProvider{
		templates: map[string]*model.ImportTemplate{},
		edges:     map[string]*model.InheritanceRelationship{},
	}
	for _, tpl := range templates {
		p.templates[tpl.ID] = tpl
	}
	return p
}

func textField(name string, required bool) model.TemplateField {
	return model.TemplateField{
		Name:     name,
		Type:     model.FieldTypeText,
		Required: required,
		Rules: []model.ExtractionRule{
			{Kind: model.RuleKindRegex, Pattern: name + `:\s*(\S+)`, Priority: 1, CaptureGroup: 1},
		},
	}
}

func TestResolveSingleTemplate(t *testing.T) {
	p := newFakeProvider(&model.ImportTemplate{
		ID:     "a",
		Name:   "base",
		Fields: []model.TemplateField{textField("user", true)},
	})

	eff, err := Resolve(p, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, eff.AncestorChain)
	assert.Len(t, eff.Fields, 1)
	assert.Equal(t, eff.OwnFields, eff.Fields)
}

func TestResolveChildOverridesParentField(t *testing.T) {
	parentField := textField("X", false)
	childField := textField("X", true)
	childField.DisplayName = "Child X"

	p := newFakeProvider(
		&model.ImportTemplate{ID: "parent", Name: "parent", Fields: []model.TemplateField{parentField, textField("only_parent", false)}},
		&model.ImportTemplate{ID: "child", Name: "child", ParentID: "parent", Fields: []model.TemplateField{childField}},
	)

	eff, err := Resolve(p, "child")
	require.NoError(t, err)
	require.Equal(t, []string{"parent", "child"}, eff.AncestorChain)

	// Exactly one field named X, with the child's definition.
	var found int
	for _, f := range eff.Fields {
		if f.Name == "X" {
			found++
			assert.Equal(t, "Child X", f.DisplayName)
			assert.True(t, f.Required)
		}
	}
	assert.Equal(t, 1, found)
	assert.Len(t, eff.Fields, 2)
	assert.Len(t, eff.OwnFields, 1, "own fields must stay separate from inherited ones")
}

func TestResolveAppendOnlyRenamesConflict(t *testing.T) {
	p := newFakeProvider(
		&model.ImportTemplate{ID: "parent", Name: "parent", Fields: []model.TemplateField{textField("X", false)}},
		&model.ImportTemplate{ID: "child", Name: "incident", ParentID: "parent", Fields: []model.TemplateField{textField("X", true)}},
	)
	p.edges["child"] = &model.InheritanceRelationship{
		ChildID:  "child",
		ParentID: "parent",
		Config:   model.InheritanceConfig{Policy: model.OverrideAppendOnly},
	}

	eff, err := Resolve(p, "child")
	require.NoError(t, err)
	require.Len(t, eff.Fields, 2)
	assert.Equal(t, "X", eff.Fields[0].Name)
	assert.False(t, eff.Fields[0].Required, "inherited definition is kept")
	assert.Equal(t, "X_incident", eff.Fields[1].Name)
}

func TestResolveInheritedCategoriesFilter(t *testing.T) {
	identity := textField("user", false)
	identity.Category = "identity"
	timing := textField("date", false)
	timing.Category = "timing"

	p := newFakeProvider(
		&model.ImportTemplate{ID: "parent", Name: "parent", Fields: []model.TemplateField{identity, timing}},
		&model.ImportTemplate{ID: "child", Name: "child", ParentID: "parent"},
	)
	p.edges["child"] = &model.InheritanceRelationship{
		ChildID:  "child",
		ParentID: "parent",
		Config:   model.InheritanceConfig{InheritedCategories: []string{"identity"}},
	}

	eff, err := Resolve(p, "child")
	require.NoError(t, err)
	require.Len(t, eff.Fields, 1)
	assert.Equal(t, "user", eff.Fields[0].Name)
}

func TestResolveCycleDetected(t *testing.T) {
	p := newFakeProvider(
		&model.ImportTemplate{ID: "a", Name: "a", ParentID: "b"},
		&model.ImportTemplate{ID: "b", Name: "b", ParentID: "c"},
		&model.ImportTemplate{ID: "c", Name: "c", ParentID: "a"},
	)

	_, err := Resolve(p, "a")
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycleErr.Chain)
}

func TestResolveMissingAncestor(t *testing.T) {
	p := newFakeProvider(
		&model.ImportTemplate{ID: "child", Name: "child", ParentID: "gone"},
	)

	_, err := Resolve(p, "child")
	var missing *MissingAncestorError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "gone", missing.ID)
}

func TestResolveUnknownTarget(t *testing.T) {
	p := newFakeProvider()
	_, err := Resolve(p, "nope")
	require.Error(t, err)

	var missing *MissingAncestorError
	assert.False(t, errors.As(err, &missing), "unknown target is not a missing ancestor")
}

func TestWouldCreateCycle(t *testing.T) {
	// Existing graph: a -> b -> c (a's parent is b, b's parent is c).
	p := newFakeProvider(
		&model.ImportTemplate{ID: "a", Name: "a", ParentID: "b"},
		&model.ImportTemplate{ID: "b", Name: "b", ParentID: "c"},
		&model.ImportTemplate{ID: "c", Name: "c"},
	)

	// Adding c -> a closes the loop: a is reachable walking up from a.
	cyc, err := WouldCreateCycle(p, "c", "a")
	require.NoError(t, err)
	assert.True(t, cyc)

	// Adding a fresh root above c is fine.
	p.templates["d"] = &model.ImportTemplate{ID: "d", Name: "d"}
	cyc, err = WouldCreateCycle(p, "c", "d")
	require.NoError(t, err)
	assert.False(t, cyc)

	// Self edges always cycle.
	cyc, err = WouldCreateCycle(p, "a", "a")
	require.NoError(t, err)
	assert.True(t, cyc)
}

func TestWouldCreateCycleNoCycleForSiblingChain(t *testing.T) {
	// A -> B, B -> C in child->parent direction means C is the root.
	p := newFakeProvider(
		&model.ImportTemplate{ID: "A", Name: "A", ParentID: "B"},
		&model.ImportTemplate{ID: "B", Name: "B", ParentID: "C"},
		&model.ImportTemplate{ID: "C", Name: "C"},
	)

	cyc, err := WouldCreateCycle(p, "A", "C")
	require.NoError(t, err)
	assert.False(t, cyc)
}
