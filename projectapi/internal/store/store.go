// Package store provides the SQLite persistence layer for projects: the
// saved document, opaque automation entities and materialised data tables.
package store

import (
	"database/sql"
	"errors"

	"github.com/hazyhaar/pagewright/dbopen"
)

// ErrNotFound is returned when a project or entity does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the project database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the project database at path and applies the
// schema. The caller blank-imports the SQLite driver.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
