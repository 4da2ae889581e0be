package models

import (
	"database/sql"

	h "github.com/microcosm-collective/pantry/helpers"
)

// Store runs the catalogue queries against the relational database. Every
// query waits for a slot in the worker pool before touching the database so
// that the number of blocking database calls is bounded.
type Store struct {
	db      *sql.DB
	driver  string
	workers *h.Workers
}

// NewStore returns a Store over an open connection pool
func NewStore(db *sql.DB, driver string, workers *h.Workers) *Store {
	return &Store{
		db:      db,
		driver:  driver,
		workers: workers,
	}
}

// DB returns the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) query(q string) string {
	return h.Rebind(s.driver, q)
}
