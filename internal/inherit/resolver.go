// Package inherit resolves effective templates by walking the parent/child
// inheritance graph, detecting cycles and merging field definitions by the
// per-edge override rules.
package inherit

import (
	"fmt"

	"github.com/tivault/docmatch/internal/model"
)

// ChainProvider supplies the template snapshot the resolver walks. The
// resolver only reads through it and never mutates store state.
type ChainProvider interface {
	// Template returns the template with the given id, or found=false when
	// no such template exists.
	Template(id string) (*model.ImportTemplate, bool, error)

	// Relationship returns the inheritance edge whose child is childID, or
	// nil when the child has no declared edge config. A template may carry a
	// ParentID without an explicit relationship record; the default merge
	// policy applies then.
	Relationship(childID string) (*model.InheritanceRelationship, error)
}

// Resolve walks parent pointers upward from templateID, validates the chain
// and returns the flattened effective template. Fails with *CycleError when
// any id is revisited and *MissingAncestorError when a parent reference
// dangles.
func Resolve(provider ChainProvider, templateID string) (*model.EffectiveTemplate, error) {
	chain, err := ancestorChain(provider, templateID)
	if err != nil {
		return nil, err
	}

	// chain is ordered root to target. Merge each descendant's own fields
	// over the accumulated set using the config on that parent→child edge.
	var fields []model.TemplateField
	for i, tpl := range chain {
		if i == 0 {
			fields = append(fields, tpl.Fields...)
			continue
		}
		cfg := model.InheritanceConfig{Policy: model.OverrideReplace}
		rel, err := provider.Relationship(tpl.ID)
		if err != nil {
			return nil, fmt.Errorf("loading relationship for %s: %w", tpl.ID, err)
		}
		if rel != nil {
			cfg = rel.Config
		}
		fields = mergeFields(fields, tpl, cfg)
	}

	target := chain[len(chain)-1]
	ids := make([]string, len(chain))
	for i, tpl := range chain {
		ids[i] = tpl.ID
	}

	own := make([]model.TemplateField, len(target.Fields))
	copy(own, target.Fields)

	eff := &model.EffectiveTemplate{
		Template:      *target,
		Fields:        fields,
		OwnFields:     own,
		AncestorChain: ids,
	}
	if err := validateEffective(eff); err != nil {
		return nil, err
	}
	return eff, nil
}

// WouldCreateCycle simulates adding the edge childID→parentID and reports
// whether childID is reachable from parentID by walking upward. The store
// must call this before persisting any new edge; the resolver itself never
// mutates the graph.
func WouldCreateCycle(provider ChainProvider, childID, parentID string) (bool, error) {
	if childID == parentID {
		return true, nil
	}
	visited := map[string]struct{}{}
	current := parentID
	for current != "" {
		if current == childID {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			// The existing graph already cycles above parentID; adding the
			// edge cannot make it worse, but it certainly does not make a
			// valid graph either.
			return true, nil
		}
		visited[current] = struct{}{}

		tpl, found, err := provider.Template(current)
		if err != nil {
			return false, fmt.Errorf("loading template %s: %w", current, err)
		}
		if !found {
			return false, &MissingAncestorError{ID: current}
		}
		current = tpl.ParentID
	}
	return false, nil
}

// ancestorChain walks from templateID to the root, returning templates
// ordered root to target.
func ancestorChain(provider ChainProvider, templateID string) ([]*model.ImportTemplate, error) {
	visited := map[string]struct{}{}
	var upward []*model.ImportTemplate
	var order []string

	current := templateID
	for current != "" {
		if _, seen := visited[current]; seen {
			return nil, &CycleError{Chain: append(order, current)}
		}
		visited[current] = struct{}{}
		order = append(order, current)

		tpl, found, err := provider.Template(current)
		if err != nil {
			return nil, fmt.Errorf("loading template %s: %w", current, err)
		}
		if !found {
			if current == templateID {
				return nil, fmt.Errorf("template %q not found", templateID)
			}
			return nil, &MissingAncestorError{ID: current}
		}
		upward = append(upward, tpl)
		current = tpl.ParentID
	}

	// Reverse target-to-root into root-to-target.
	chain := make([]*model.ImportTemplate, len(upward))
	for i, tpl := range upward {
		chain[len(upward)-1-i] = tpl
	}
	return chain, nil
}

// mergeFields applies a child template's own fields over the accumulated
// inherited set. A child field with the same name overrides the inherited
// field entirely unless the edge config marks its category append-only, in
// which case the child's field is renamed on conflict and both are kept.
func mergeFields(inherited []model.TemplateField, child *model.ImportTemplate, cfg model.InheritanceConfig) []model.TemplateField {
	merged := make([]model.TemplateField, 0, len(inherited)+len(child.Fields))
	index := make(map[string]int, len(inherited))
	for _, f := range inherited {
		if !categoryInherited(cfg, f.Category) {
			continue
		}
		index[f.Name] = len(merged)
		merged = append(merged, f)
	}

	for _, f := range child.Fields {
		pos, conflict := index[f.Name]
		if !conflict {
			index[f.Name] = len(merged)
			merged = append(merged, f)
			continue
		}
		if appendOnly(cfg, f.Category) {
			renamed := f
			renamed.Name = fmt.Sprintf("%s_%s", f.Name, child.Name)
			index[renamed.Name] = len(merged)
			merged = append(merged, renamed)
			continue
		}
		// Override replaces the definition entirely, no deep merge.
		merged[pos] = f
	}
	return merged
}

func categoryInherited(cfg model.InheritanceConfig, category string) bool {
	if len(cfg.InheritedCategories) == 0 {
		return true
	}
	for _, c := range cfg.InheritedCategories {
		if c == category {
			return true
		}
	}
	return false
}

func appendOnly(cfg model.InheritanceConfig, category string) bool {
	if cfg.Policy == model.OverrideAppendOnly {
		return true
	}
	for _, c := range cfg.AppendOnlyCategories {
		if c == category {
			return true
		}
	}
	return false
}

// validateEffective enforces the post-merge invariant: no two fields may
// share a name in the flattened set.
func validateEffective(eff *model.EffectiveTemplate) error {
	seen := make(map[string]struct{}, len(eff.Fields))
	for _, f := range eff.Fields {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("effective template %s: duplicate field %q after merge", eff.Template.ID, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
