package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tivault/docmatch/internal/model"
)

// SQLite is a durable Store over a single SQLite database file. Templates
// are stored as JSON payloads beside the indexed columns the queries need.
type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite creates or opens the catalog database at the given path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	s := &SQLite{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// OpenSQLiteMemory creates an in-memory catalog database, useful for testing.
func OpenSQLiteMemory() (*SQLite, error) {
	db, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	s := &SQLite{db: db, path: ":memory:"}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS templates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    parent_id TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    active INTEGER NOT NULL DEFAULT 1,
    payload TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_templates_name ON templates(name);
CREATE INDEX IF NOT EXISTS idx_templates_parent ON templates(parent_id);

CREATE TABLE IF NOT EXISTS relationships (
    child_id TEXT PRIMARY KEY REFERENCES templates(id),
    parent_id TEXT NOT NULL REFERENCES templates(id),
    config TEXT NOT NULL DEFAULT '{}'
);
`

// Snapshot loads the whole catalog into an in-memory store. Resolution and
// matching read the snapshot, keeping them free of per-query database
// round-trips and consistent for the duration of one operation.
func (s *SQLite) Snapshot(ctx context.Context) (*Memory, error) {
	mem := NewMemory()

	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM templates`)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var tpl model.ImportTemplate
		if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
			return nil, fmt.Errorf("decoding template payload: %w", err)
		}
		mem.templates[tpl.ID] = tpl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	relRows, err := s.db.QueryContext(ctx, `SELECT child_id, parent_id, config FROM relationships`)
	if err != nil {
		return nil, fmt.Errorf("loading relationships: %w", err)
	}
	defer relRows.Close()
	for relRows.Next() {
		var childID, parentID, config string
		if err := relRows.Scan(&childID, &parentID, &config); err != nil {
			return nil, err
		}
		var cfg model.InheritanceConfig
		if err := json.Unmarshal([]byte(config), &cfg); err != nil {
			return nil, fmt.Errorf("decoding relationship config: %w", err)
		}
		mem.edges[childID] = model.InheritanceRelationship{
			ChildID:  childID,
			ParentID: parentID,
			Config:   cfg,
		}
	}
	return mem, relRows.Err()
}

// Template implements inherit.ChainProvider.
func (s *SQLite) Template(id string) (*model.ImportTemplate, bool, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM templates WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var tpl model.ImportTemplate
	if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
		return nil, false, fmt.Errorf("decoding template payload: %w", err)
	}
	return &tpl, true, nil
}

// Relationship implements inherit.ChainProvider.
func (s *SQLite) Relationship(childID string) (*model.InheritanceRelationship, error) {
	var parentID, config string
	err := s.db.QueryRow(`SELECT parent_id, config FROM relationships WHERE child_id = ?`, childID).Scan(&parentID, &config)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg model.InheritanceConfig
	if err := json.Unmarshal([]byte(config), &cfg); err != nil {
		return nil, fmt.Errorf("decoding relationship config: %w", err)
	}
	return &model.InheritanceRelationship{ChildID: childID, ParentID: parentID, Config: cfg}, nil
}

func (s *SQLite) SaveTemplate(ctx context.Context, tpl *model.ImportTemplate) error {
	if err := tpl.Validate(); err != nil {
		return err
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}

	// Edge validation runs against a snapshot plus the incoming template, so
	// a new template can point at an existing parent before it is inserted.
	if tpl.ParentID != "" {
		mem, err := s.Snapshot(ctx)
		if err != nil {
			return err
		}
		mem.templates[tpl.ID] = *tpl
		if err := mem.checkEdgeLocked(tpl.ID, tpl.ParentID); err != nil {
			return err
		}
	}

	var version int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM templates WHERE id = ?`, tpl.ID).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if tpl.Version < 1 {
			tpl.Version = 1
		}
	case err != nil:
		return err
	default:
		tpl.Version = version + 1
	}

	payload, err := json.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("encoding template payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO templates (id, name, category, parent_id, version, active, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			parent_id = excluded.parent_id,
			version = excluded.version,
			active = excluded.active,
			payload = excluded.payload`,
		tpl.ID, tpl.Name, tpl.Category, tpl.ParentID, tpl.Version, boolToInt(tpl.Active), string(payload))
	if err != nil {
		return err
	}

	if tpl.ParentID == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE child_id = ?`, tpl.ID); err != nil {
			return err
		}
	} else {
		// A changed parent resets the edge to the default policy; an
		// unchanged parent keeps the config a SetRelationship call attached.
		_, err = tx.ExecContext(ctx, `
			INSERT INTO relationships (child_id, parent_id, config)
			VALUES (?, ?, ?)
			ON CONFLICT(child_id) DO UPDATE SET
				parent_id = excluded.parent_id,
				config = CASE
					WHEN relationships.parent_id = excluded.parent_id THEN relationships.config
					ELSE excluded.config
				END`,
			tpl.ID, tpl.ParentID, `{"policy":"replace"}`)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLite) GetTemplate(ctx context.Context, id string) (*model.ImportTemplate, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM templates WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var tpl model.ImportTemplate
	if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
		return nil, fmt.Errorf("decoding template payload: %w", err)
	}
	return &tpl, nil
}

func (s *SQLite) DeleteTemplate(ctx context.Context, id string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM templates WHERE parent_id = ?`, id)
	if err != nil {
		return err
	}
	defer rows.Close()
	var children []string
	for rows.Next() {
		var childID string
		if err := rows.Scan(&childID); err != nil {
			return err
		}
		children = append(children, childID)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(children) > 0 {
		sort.Strings(children)
		return &HasChildrenError{ID: id, Children: children}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE child_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLite) ListTemplates(ctx context.Context) ([]model.ImportTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ImportTemplate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var tpl model.ImportTemplate
		if err := json.Unmarshal([]byte(payload), &tpl); err != nil {
			return nil, fmt.Errorf("decoding template payload: %w", err)
		}
		out = append(out, tpl)
	}
	return out, rows.Err()
}

func (s *SQLite) SetRelationship(ctx context.Context, rel model.InheritanceRelationship) error {
	child, err := s.GetTemplate(ctx, rel.ChildID)
	if err != nil {
		return err
	}
	if _, err := s.GetTemplate(ctx, rel.ParentID); err != nil {
		return err
	}

	mem, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := mem.checkEdgeLocked(rel.ChildID, rel.ParentID); err != nil {
		return err
	}

	child.ParentID = rel.ParentID
	payload, err := json.Marshal(child)
	if err != nil {
		return fmt.Errorf("encoding template payload: %w", err)
	}
	config, err := json.Marshal(rel.Config)
	if err != nil {
		return fmt.Errorf("encoding relationship config: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `UPDATE templates SET parent_id = ?, payload = ? WHERE id = ?`,
		rel.ParentID, string(payload), rel.ChildID)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO relationships (child_id, parent_id, config)
		VALUES (?, ?, ?)
		ON CONFLICT(child_id) DO UPDATE SET parent_id = excluded.parent_id, config = excluded.config`,
		rel.ChildID, rel.ParentID, string(config))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) RemoveRelationship(ctx context.Context, childID string) error {
	child, err := s.GetTemplate(ctx, childID)
	if err != nil {
		return err
	}
	child.ParentID = ""
	payload, err := json.Marshal(child)
	if err != nil {
		return fmt.Errorf("encoding template payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE templates SET parent_id = '', payload = ? WHERE id = ?`, string(payload), childID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM relationships WHERE child_id = ?`, childID); err != nil {
		return err
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
