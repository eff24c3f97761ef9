package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// querier abstracts *sql.DB and *sql.Tx so record operations run the same
// inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get loads the record stored under key into dest.
// Returns ErrNotFound when the key is absent.
func (s *Store) Get(ctx context.Context, collection, key string, dest any) error {
	c, err := s.lookup(collection)
	if err != nil {
		return err
	}
	return getRecord(ctx, s.db, c, key, dest)
}

// Put upserts the record under key. The record is serialized to JSON.
func (s *Store) Put(ctx context.Context, collection, key string, record any) error {
	c, err := s.lookup(collection)
	if err != nil {
		return err
	}
	return putRecord(ctx, s.db, c, key, record)
}

// Delete removes the record under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	c, err := s.lookup(collection)
	if err != nil {
		return err
	}
	return deleteRecord(ctx, s.db, c, key)
}

// GetAll loads every record of the collection into dest, which must be a
// pointer to a slice. Order is unspecified.
func (s *Store) GetAll(ctx context.Context, collection string, dest any) error {
	c, err := s.lookup(collection)
	if err != nil {
		return err
	}
	return getAllRecords(ctx, s.db, c, "", nil, dest)
}

// GetAllByIndex loads the records whose indexed field equals value.
// The field must be a declared index of the collection.
func (s *Store) GetAllByIndex(ctx context.Context, collection, field string, value any, dest any) error {
	c, err := s.lookup(collection)
	if err != nil {
		return err
	}
	if !c.indexed(field) {
		return fmt.Errorf("collection %s has no index on %q", collection, field)
	}
	return getAllRecords(ctx, s.db, c, field, value, dest)
}

func getRecord(ctx context.Context, q querier, c Collection, key string, dest any) error {
	var raw []byte
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT record FROM %q WHERE key = ?`, c.Name), key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", c.Name, key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode %s/%s: %w", c.Name, key, err)
	}
	return nil
}

func putRecord(ctx context.Context, q querier, c Collection, key string, record any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.Name, key, err)
	}
	_, err = q.ExecContext(ctx,
		fmt.Sprintf(`
			INSERT INTO %q (key, record) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET record = excluded.record
		`, c.Name),
		key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", c.Name, key, err)
	}
	return nil
}

func deleteRecord(ctx context.Context, q querier, c Collection, key string) error {
	_, err := q.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, c.Name), key,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", c.Name, key, err)
	}
	return nil
}

// getAllRecords collects raw JSON records (optionally restricted to an
// indexed field value) and decodes them as one JSON array into dest.
func getAllRecords(ctx context.Context, q querier, c Collection, field string, value any, dest any) error {
	query := fmt.Sprintf(`SELECT record FROM %q`, c.Name)
	var args []any
	if field != "" {
		query += ` WHERE json_extract(record, ?) = ?`
		args = append(args, "$."+field, value)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query %s: %w", c.Name, err)
	}
	defer rows.Close()

	var raws [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("scan %s: %w", c.Name, err)
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", c.Name, err)
	}

	arr := append([]byte{'['}, bytes.Join(raws, []byte{','})...)
	arr = append(arr, ']')
	if err := json.Unmarshal(arr, dest); err != nil {
		return fmt.Errorf("decode %s: %w", c.Name, err)
	}
	return nil
}
