package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/pagewright/dbopen"
	"github.com/hazyhaar/pagewright/guard"
)

// TableSchema is the part of a data-table payload needed to create it.
type TableSchema struct {
	Name    string        `json:"name"`
	Columns []TableColumn `json:"columns"`
}

// TableColumn is one column of a data table.
type TableColumn struct {
	Name string `json:"name"`
	Type string `json:"type"` // text, number, integer, boolean, date
}

var columnTypes = map[string]string{
	"":        "TEXT",
	"text":    "TEXT",
	"date":    "TEXT",
	"number":  "REAL",
	"integer": "INTEGER",
	"boolean": "INTEGER",
}

// TableName returns the SQLite table backing a project's data table.
func TableName(projectID, name string) (string, error) {
	prefix := strings.ReplaceAll(projectID, "-", "")
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	table := "dt_" + prefix + "_" + name
	if err := guard.SQLIdent(name); err != nil {
		return "", err
	}
	if err := guard.SQLIdent(table); err != nil {
		return "", err
	}
	return table, nil
}

// createTableSQL builds the CREATE TABLE statement for ts. Every
// identifier is validated; the statement is never built from raw input.
func createTableSQL(table string, ts TableSchema) (string, error) {
	if len(ts.Columns) == 0 {
		return "", fmt.Errorf("store: table %s: no columns", ts.Name)
	}
	cols := []string{"id INTEGER PRIMARY KEY"}
	seen := map[string]bool{"id": true}
	for _, c := range ts.Columns {
		if err := guard.SQLIdent(c.Name); err != nil {
			return "", err
		}
		lower := strings.ToLower(c.Name)
		if seen[lower] {
			return "", fmt.Errorf("store: table %s: duplicate column %q", ts.Name, c.Name)
		}
		seen[lower] = true
		typ, ok := columnTypes[strings.ToLower(c.Type)]
		if !ok {
			return "", fmt.Errorf("store: table %s: column %s: unknown type %q", ts.Name, c.Name, c.Type)
		}
		cols = append(cols, fmt.Sprintf("%q %s", c.Name, typ))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %q (%s)", table, strings.Join(cols, ", ")), nil
}

// MaterializeTable creates the SQLite table for a data-table schema and
// records it. It is idempotent.
func (s *Store) MaterializeTable(ctx context.Context, projectID, schemaID string, ts TableSchema) (string, error) {
	table, err := TableName(projectID, ts.Name)
	if err != nil {
		return "", err
	}
	stmt, err := createTableSQL(table, ts)
	if err != nil {
		return "", err
	}
	err = dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO materialized_tables (project_id, schema_id, table_name, created_at)
			VALUES (?,?,?,?)
			ON CONFLICT(project_id, schema_id) DO UPDATE SET table_name = excluded.table_name`,
			projectID, schemaID, table, time.Now().UnixMilli())
		return err
	})
	if err != nil {
		return "", fmt.Errorf("store: materialize %s: %w", table, err)
	}
	return table, nil
}

// MaterializedTables lists the tables created for a project.
func (s *Store) MaterializedTables(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT table_name FROM materialized_tables WHERE project_id = ? ORDER BY table_name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("store: list tables: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
