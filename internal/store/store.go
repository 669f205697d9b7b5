// Package store persists the template catalog and its inheritance graph.
// Two implementations exist: an in-memory store used for tests and as the
// resolution snapshot, and a SQLite-backed store for durable catalogs.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tivault/docmatch/internal/inherit"
	"github.com/tivault/docmatch/internal/model"
)

// ErrNotFound is returned when a template id does not exist in the catalog.
var ErrNotFound = errors.New("template not found")

// HasChildrenError rejects deleting a template other templates inherit from.
type HasChildrenError struct {
	ID       string
	Children []string
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("template %s has %d inheriting children", e.ID, len(e.Children))
}

// Store is the template catalog contract. Every Store doubles as the chain
// provider the inheritance resolver reads, so resolution always sees the
// same graph writes go to.
type Store interface {
	inherit.ChainProvider

	// SaveTemplate inserts or updates a template. An empty ID is assigned;
	// updating an existing template bumps its version. A non-empty ParentID
	// is recorded as an inheritance edge after acyclicity validation.
	SaveTemplate(ctx context.Context, tpl *model.ImportTemplate) error

	// GetTemplate returns the template with the given id or ErrNotFound.
	GetTemplate(ctx context.Context, id string) (*model.ImportTemplate, error)

	// DeleteTemplate removes a template. Templates other templates inherit
	// from cannot be deleted.
	DeleteTemplate(ctx context.Context, id string) error

	// ListTemplates returns every template, sorted by name.
	ListTemplates(ctx context.Context) ([]model.ImportTemplate, error)

	// SetRelationship creates or replaces the inheritance edge for a child,
	// rejecting edges that would make the graph cyclic.
	SetRelationship(ctx context.Context, rel model.InheritanceRelationship) error

	// RemoveRelationship detaches a child from its parent.
	RemoveRelationship(ctx context.Context, childID string) error
}
