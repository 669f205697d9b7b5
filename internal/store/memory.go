package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/tivault/docmatch/internal/inherit"
	"github.com/tivault/docmatch/internal/model"
)

// Memory is an in-memory Store. It backs tests and serves as the immutable
// snapshot SQLite catalogs hand the resolver.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]model.ImportTemplate
	edges     map[string]model.InheritanceRelationship
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{
		templates: map[string]model.ImportTemplate{},
		edges:     map[string]model.InheritanceRelationship{},
	}
}

var _ Store = (*Memory)(nil)

// Template implements inherit.ChainProvider.
func (m *Memory) Template(id string) (*model.ImportTemplate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, false, nil
	}
	cp := tpl
	return &cp, true, nil
}

// Relationship implements inherit.ChainProvider.
func (m *Memory) Relationship(childID string) (*model.InheritanceRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rel, ok := m.edges[childID]
	if !ok {
		return nil, nil
	}
	cp := rel
	return &cp, nil
}

func (m *Memory) SaveTemplate(_ context.Context, tpl *model.ImportTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if tpl.ParentID != "" {
		if err := m.checkEdgeLocked(tpl.ID, tpl.ParentID); err != nil {
			return err
		}
	}

	if existing, ok := m.templates[tpl.ID]; ok {
		tpl.Version = existing.Version + 1
	} else if tpl.Version < 1 {
		tpl.Version = 1
	}
	m.templates[tpl.ID] = *tpl

	// Keep the edge table in sync with the parent pointer; an explicit
	// SetRelationship call may later attach a richer merge config.
	if tpl.ParentID == "" {
		delete(m.edges, tpl.ID)
	} else if rel, ok := m.edges[tpl.ID]; !ok || rel.ParentID != tpl.ParentID {
		m.edges[tpl.ID] = model.InheritanceRelationship{
			ChildID:  tpl.ID,
			ParentID: tpl.ParentID,
			Config:   model.InheritanceConfig{Policy: model.OverrideReplace},
		}
	}
	return nil
}

func (m *Memory) GetTemplate(_ context.Context, id string) (*model.ImportTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tpl, ok := m.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := tpl
	return &cp, nil
}

func (m *Memory) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[id]; !ok {
		return ErrNotFound
	}
	var children []string
	for _, tpl := range m.templates {
		if tpl.ParentID == id {
			children = append(children, tpl.ID)
		}
	}
	if len(children) > 0 {
		sort.Strings(children)
		return &HasChildrenError{ID: id, Children: children}
	}

	delete(m.templates, id)
	delete(m.edges, id)
	return nil
}

func (m *Memory) ListTemplates(_ context.Context) ([]model.ImportTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.ImportTemplate, 0, len(m.templates))
	for _, tpl := range m.templates {
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) SetRelationship(_ context.Context, rel model.InheritanceRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, ok := m.templates[rel.ChildID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m.templates[rel.ParentID]; !ok {
		return ErrNotFound
	}
	if err := m.checkEdgeLocked(rel.ChildID, rel.ParentID); err != nil {
		return err
	}

	child.ParentID = rel.ParentID
	m.templates[rel.ChildID] = child
	m.edges[rel.ChildID] = rel
	return nil
}

func (m *Memory) RemoveRelationship(_ context.Context, childID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	child, ok := m.templates[childID]
	if !ok {
		return ErrNotFound
	}
	child.ParentID = ""
	m.templates[childID] = child
	delete(m.edges, childID)
	return nil
}

// checkEdgeLocked validates acyclicity of a prospective child→parent edge.
// Callers hold the write lock, so the check reads the maps directly through
// an unlocked view.
func (m *Memory) checkEdgeLocked(childID, parentID string) error {
	view := &lockedView{m: m}
	cyclic, err := inherit.WouldCreateCycle(view, childID, parentID)
	if err != nil {
		return err
	}
	if cyclic {
		return &inherit.CycleError{Chain: []string{childID, parentID}}
	}
	return nil
}

// lockedView reads Memory's maps without taking locks, for use while the
// write lock is already held.
type lockedView struct {
	m *Memory
}

func (v *lockedView) Template(id string) (*model.ImportTemplate, bool, error) {
	tpl, ok := v.m.templates[id]
	if !ok {
		return nil, false, nil
	}
	cp := tpl
	return &cp, true, nil
}

func (v *lockedView) Relationship(childID string) (*model.InheritanceRelationship, error) {
	rel, ok := v.m.edges[childID]
	if !ok {
		return nil, nil
	}
	cp := rel
	return &cp, nil
}
