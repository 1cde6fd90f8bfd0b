package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Project is a saved site.
type Project struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	HTML      string          `json:"html"`
	Meta      json.RawMessage `json:"meta,omitempty"`
	Revision  uint64          `json:"revision"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

// InsertProject creates a project.
func (s *Store) InsertProject(ctx context.Context, p *Project) error {
	now := time.Now().UnixMilli()
	if p.CreatedAt == 0 {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if len(p.Meta) == 0 {
		p.Meta = json.RawMessage(`{}`)
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO projects (id, name, html, meta, revision, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Name, p.HTML, string(p.Meta), p.Revision, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	p := &Project{}
	var meta string
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, name, html, meta, revision, created_at, updated_at
		FROM projects WHERE id = ?`, id).Scan(
		&p.ID, &p.Name, &p.HTML, &meta, &p.Revision, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get project: %w", err)
	}
	p.Meta = json.RawMessage(meta)
	return p, nil
}

// ListProjects returns all projects without their documents, most
// recently updated first.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, name, meta, revision, created_at, updated_at
		FROM projects ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list projects: %w", err)
	}
	defer rows.Close()

	var out []*Project
	for rows.Next() {
		p := &Project{}
		var meta string
		if err := rows.Scan(&p.ID, &p.Name, &meta, &p.Revision, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.Meta = json.RawMessage(meta)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveDocument stores the serialised document with the editor revision it
// was taken at.
func (s *Store) SaveDocument(ctx context.Context, id, html string, meta json.RawMessage, revision uint64) error {
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE projects SET html = ?, meta = ?, revision = ?, updated_at = ?
		WHERE id = ?`,
		html, string(meta), revision, time.Now().UnixMilli(), id,
	)
	if err != nil {
		return fmt.Errorf("store: save document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProject removes a project and everything attached to it.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
