package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is an automation entity kind.
type Kind string

const (
	KindTrigger     Kind = "trigger"
	KindDataTable   Kind = "data_table"
	KindDataBinding Kind = "data_binding"
	KindConnection  Kind = "external_connection"
)

// Kinds lists every automation kind.
var Kinds = []Kind{KindTrigger, KindDataTable, KindDataBinding, KindConnection}

// Entity is one automation record. Payload is stored as-is.
type Entity struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Kind      Kind            `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// PutEntity inserts or replaces an entity.
func (s *Store) PutEntity(ctx context.Context, e *Entity) error {
	now := time.Now().UnixMilli()
	if e.CreatedAt == 0 {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO automation_entities (id, project_id, kind, payload, created_at, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		e.ID, e.ProjectID, string(e.Kind), string(e.Payload), e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: put entity: %w", err)
	}
	return nil
}

// GetEntity retrieves one entity of a project.
func (s *Store) GetEntity(ctx context.Context, projectID, id string) (*Entity, error) {
	e := &Entity{}
	var kind, payload string
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, project_id, kind, payload, created_at, updated_at
		FROM automation_entities WHERE project_id = ? AND id = ?`, projectID, id).Scan(
		&e.ID, &e.ProjectID, &kind, &payload, &e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get entity: %w", err)
	}
	e.Kind = Kind(kind)
	e.Payload = json.RawMessage(payload)
	return e, nil
}

// ListEntities returns a project's entities of one kind, oldest first.
func (s *Store) ListEntities(ctx context.Context, projectID string, kind Kind) ([]*Entity, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, project_id, kind, payload, created_at, updated_at
		FROM automation_entities WHERE project_id = ? AND kind = ?
		ORDER BY created_at, id`, projectID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("store: list entities: %w", err)
	}
	defer rows.Close()

	var out []*Entity
	for rows.Next() {
		e := &Entity{}
		var k, payload string
		if err := rows.Scan(&e.ID, &e.ProjectID, &k, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Kind = Kind(k)
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteEntity removes an entity of the given kind.
func (s *Store) DeleteEntity(ctx context.Context, projectID string, kind Kind, id string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM automation_entities WHERE project_id = ? AND kind = ? AND id = ?`,
		projectID, string(kind), id)
	if err != nil {
		return fmt.Errorf("store: delete entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Automation is everything attached to a project besides its document.
type Automation struct {
	ProjectID    string    `json:"project_id"`
	Triggers     []*Entity `json:"triggers"`
	DataTables   []*Entity `json:"data_tables"`
	DataBindings []*Entity `json:"data_bindings"`
	Connections  []*Entity `json:"external_connections"`
}

// GetAutomation loads all automation entities of a project.
func (s *Store) GetAutomation(ctx context.Context, projectID string) (*Automation, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	a := &Automation{ProjectID: projectID}
	for _, k := range Kinds {
		list, err := s.ListEntities(ctx, projectID, k)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []*Entity{}
		}
		switch k {
		case KindTrigger:
			a.Triggers = list
		case KindDataTable:
			a.DataTables = list
		case KindDataBinding:
			a.DataBindings = list
		case KindConnection:
			a.Connections = list
		}
	}
	return a, nil
}
