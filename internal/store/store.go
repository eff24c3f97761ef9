package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get when no record exists under the given key.
var ErrNotFound = errors.New("record not found")

// ErrUnavailable wraps failures to open or reach the database file.
var ErrUnavailable = errors.New("store unavailable")

// ErrUnknownCollection is returned when a collection name was never declared.
var ErrUnknownCollection = errors.New("unknown collection")

// Collection declares a named record set and its secondary indexes.
// Indexed fields are top-level JSON keys of the stored record.
type Collection struct {
	Name    string
	Indexes []string
}

// Collections is the fixed set of record sets the terminal persists.
// Mirrors the layout the sync protocol and print queue expect:
// orders, orderItems, menuItems, inventory, outbox, meta, printJobs.
var Collections = []Collection{
	{Name: "orders", Indexes: []string{"status", "updatedAt"}},
	{Name: "orderItems", Indexes: []string{"orderId"}},
	{Name: "menuItems", Indexes: []string{"category"}},
	{Name: "inventory"},
	{Name: "outbox"},
	{Name: "meta"},
	{Name: "printJobs", Indexes: []string{"status"}},
}

// Store provides durable, transactional storage for the offline terminal.
// Uses SQLite with WAL mode; each collection is a table holding one JSON
// record per key, with SQL indexes over json_extract for declared fields.
type Store struct {
	db          *sql.DB
	collections map[string]Collection
}

// Open creates or opens a SQLite database at the given path and ensures
// all declared collections exist.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrUnavailable, path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connect %s: %v", ErrUnavailable, path, err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	s := &Store{
		db:          db,
		collections: make(map[string]Collection, len(Collections)),
	}
	for _, c := range Collections {
		s.collections[c.Name] = c
	}

	if err := s.createCollections(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// createCollections creates tables and indexes for every declared collection.
// Idempotent via IF NOT EXISTS.
func (s *Store) createCollections() error {
	for _, c := range Collections {
		ddl := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, record TEXT NOT NULL)`,
			c.Name,
		)
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create collection %s: %w", c.Name, err)
		}

		for _, field := range c.Indexes {
			idx := fmt.Sprintf(
				`CREATE INDEX IF NOT EXISTS %q ON %q (json_extract(record, '$.%s'))`,
				"idx_"+c.Name+"_"+field, c.Name, field,
			)
			if _, err := s.db.Exec(idx); err != nil {
				return fmt.Errorf("create index %s.%s: %w", c.Name, field, err)
			}
		}
	}

	return nil
}

// lookup resolves a collection by name. Access through undeclared names is
// rejected up front so collection names can be interpolated into SQL safely.
func (s *Store) lookup(name string) (Collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return Collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	return c, nil
}

// indexed reports whether field is a declared index of the collection.
func (c Collection) indexed(field string) bool {
	for _, f := range c.Indexes {
		if f == field {
			return true
		}
	}
	return false
}
