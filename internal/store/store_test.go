package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tivault/docmatch/internal/inherit"
	"github.com/tivault/docmatch/internal/model"
)

func textField(name string) model.TemplateField {
	return model.TemplateField{
		Name: name,
		Type: model.FieldTypeText,
		Rules: []model.ExtractionRule{
			{Kind: model.RuleKindKeyword, Pattern: name, Priority: 1},
		},
	}
}

// eachStore runs the same contract test against both implementations.
func eachStore(t *testing.T, test func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		test(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLiteMemory()
		require.NoError(t, err)
		defer s.Close()
		test(t, s)
	})
}

func TestSaveAndGetTemplate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tpl := &model.ImportTemplate{
			Name:             "incident report",
			Category:         "security",
			Fields:           []model.TemplateField{textField("TicketNumber")},
			SupportedFormats: []string{"pdf"},
			Active:           true,
		}
		require.NoError(t, s.SaveTemplate(ctx, tpl))
		require.NotEmpty(t, tpl.ID)
		assert.Equal(t, 1, tpl.Version)

		got, err := s.GetTemplate(ctx, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, "incident report", got.Name)
		assert.Equal(t, "security", got.Category)
		require.Len(t, got.Fields, 1)
		assert.Equal(t, "TicketNumber", got.Fields[0].Name)

		_, err = s.GetTemplate(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateBumpsVersion(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		tpl := &model.ImportTemplate{Name: "invoice", Active: true}
		require.NoError(t, s.SaveTemplate(ctx, tpl))
		assert.Equal(t, 1, tpl.Version)

		tpl.Description = "updated"
		require.NoError(t, s.SaveTemplate(ctx, tpl))
		assert.Equal(t, 2, tpl.Version)

		got, err := s.GetTemplate(ctx, tpl.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version)
		assert.Equal(t, "updated", got.Description)
	})
}

func TestSaveRejectsInvalidTemplate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		err := s.SaveTemplate(context.Background(), &model.ImportTemplate{Name: "   "})
		assert.Error(t, err)

		err = s.SaveTemplate(context.Background(), &model.ImportTemplate{
			Name:   "dup fields",
			Fields: []model.TemplateField{textField("X"), textField("X")},
		})
		assert.Error(t, err)
	})
}

func TestListTemplatesSortedByName(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, name := range []string{"zeta", "alpha", "mid"} {
			require.NoError(t, s.SaveTemplate(ctx, &model.ImportTemplate{Name: name}))
		}
		list, err := s.ListTemplates(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "alpha", list[0].Name)
		assert.Equal(t, "mid", list[1].Name)
		assert.Equal(t, "zeta", list[2].Name)
	})
}

func TestDeleteTemplate(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		parent := &model.ImportTemplate{Name: "base"}
		require.NoError(t, s.SaveTemplate(ctx, parent))
		child := &model.ImportTemplate{Name: "child", ParentID: parent.ID}
		require.NoError(t, s.SaveTemplate(ctx, child))

		// A template with inheriting children cannot be deleted.
		err := s.DeleteTemplate(ctx, parent.ID)
		var hasChildren *HasChildrenError
		require.ErrorAs(t, err, &hasChildren)
		assert.Equal(t, []string{child.ID}, hasChildren.Children)

		require.NoError(t, s.DeleteTemplate(ctx, child.ID))
		require.NoError(t, s.DeleteTemplate(ctx, parent.ID))

		assert.ErrorIs(t, s.DeleteTemplate(ctx, parent.ID), ErrNotFound)
	})
}

func TestRelationshipLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		parent := &model.ImportTemplate{Name: "base", Fields: []model.TemplateField{textField("Common")}}
		require.NoError(t, s.SaveTemplate(ctx, parent))
		child := &model.ImportTemplate{Name: "child", Fields: []model.TemplateField{textField("Own")}}
		require.NoError(t, s.SaveTemplate(ctx, child))

		rel := model.InheritanceRelationship{
			ChildID:  child.ID,
			ParentID: parent.ID,
			Config:   model.InheritanceConfig{Policy: model.OverrideAppendOnly},
		}
		require.NoError(t, s.SetRelationship(ctx, rel))

		got, err := s.Relationship(child.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.OverrideAppendOnly, got.Config.Policy)

		updated, err := s.GetTemplate(ctx, child.ID)
		require.NoError(t, err)
		assert.Equal(t, parent.ID, updated.ParentID)

		require.NoError(t, s.RemoveRelationship(ctx, child.ID))
		got, err = s.Relationship(child.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
		updated, err = s.GetTemplate(ctx, child.ID)
		require.NoError(t, err)
		assert.Empty(t, updated.ParentID)
	})
}

func TestReparentResetsEdgeConfig(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		first := &model.ImportTemplate{Name: "first base"}
		require.NoError(t, s.SaveTemplate(ctx, first))
		second := &model.ImportTemplate{Name: "second base"}
		require.NoError(t, s.SaveTemplate(ctx, second))
		child := &model.ImportTemplate{Name: "child", ParentID: first.ID}
		require.NoError(t, s.SaveTemplate(ctx, child))

		require.NoError(t, s.SetRelationship(ctx, model.InheritanceRelationship{
			ChildID:  child.ID,
			ParentID: first.ID,
			Config:   model.InheritanceConfig{Policy: model.OverrideAppendOnly},
		}))

		// Saving with the parent unchanged keeps the explicit config.
		child.Description = "touched"
		require.NoError(t, s.SaveTemplate(ctx, child))
		rel, err := s.Relationship(child.ID)
		require.NoError(t, err)
		require.NotNil(t, rel)
		assert.Equal(t, model.OverrideAppendOnly, rel.Config.Policy)

		// Re-parenting resets the edge to the default policy; the old
		// parent's merge config does not follow the child to the new edge.
		child.ParentID = second.ID
		require.NoError(t, s.SaveTemplate(ctx, child))
		rel, err = s.Relationship(child.ID)
		require.NoError(t, err)
		require.NotNil(t, rel)
		assert.Equal(t, second.ID, rel.ParentID)
		assert.Equal(t, model.OverrideReplace, rel.Config.Policy)
	})
}

func TestRelationshipRejectsCycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		a := &model.ImportTemplate{Name: "a"}
		require.NoError(t, s.SaveTemplate(ctx, a))
		b := &model.ImportTemplate{Name: "b", ParentID: a.ID}
		require.NoError(t, s.SaveTemplate(ctx, b))

		// a → b would close the loop.
		err := s.SetRelationship(ctx, model.InheritanceRelationship{ChildID: a.ID, ParentID: b.ID})
		var cycle *inherit.CycleError
		assert.ErrorAs(t, err, &cycle)

		// Self-edges are cycles of length one.
		err = s.SetRelationship(ctx, model.InheritanceRelationship{ChildID: a.ID, ParentID: a.ID})
		assert.ErrorAs(t, err, &cycle)
	})
}

func TestSaveRejectsDanglingParent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		err := s.SaveTemplate(context.Background(), &model.ImportTemplate{Name: "orphan", ParentID: "ghost"})
		assert.Error(t, err)
	})
}

func TestStoreFeedsResolver(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		parent := &model.ImportTemplate{Name: "base", Fields: []model.TemplateField{textField("Common"), textField("Shared")}}
		require.NoError(t, s.SaveTemplate(ctx, parent))
		child := &model.ImportTemplate{Name: "child", ParentID: parent.ID, Fields: []model.TemplateField{textField("Shared"), textField("Own")}}
		require.NoError(t, s.SaveTemplate(ctx, child))

		eff, err := inherit.Resolve(s, child.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{parent.ID, child.ID}, eff.AncestorChain)

		names := make([]string, 0, len(eff.Fields))
		for _, f := range eff.Fields {
			names = append(names, f.Name)
		}
		assert.ElementsMatch(t, []string{"Common", "Shared", "Own"}, names)
	})
}

func TestSQLiteSnapshot(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLiteMemory()
	require.NoError(t, err)
	defer s.Close()

	parent := &model.ImportTemplate{Name: "base", Fields: []model.TemplateField{textField("Common")}}
	require.NoError(t, s.SaveTemplate(ctx, parent))
	child := &model.ImportTemplate{Name: "child", ParentID: parent.ID}
	require.NoError(t, s.SaveTemplate(ctx, child))

	mem, err := s.Snapshot(ctx)
	require.NoError(t, err)

	list, err := mem.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	rel, err := mem.Relationship(child.ID)
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, parent.ID, rel.ParentID)

	// The snapshot is detached: later writes do not appear in it.
	require.NoError(t, s.SaveTemplate(ctx, &model.ImportTemplate{Name: "late"}))
	list, err = mem.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/catalog.db"

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	tpl := &model.ImportTemplate{Name: "durable", Active: true}
	require.NoError(t, s.SaveTemplate(ctx, tpl))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetTemplate(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Name)
	assert.True(t, got.Active)
}
