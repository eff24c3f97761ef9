package store

import (
	"context"
	"fmt"
)

// Tx exposes record operations inside a transaction. All writes commit
// together when the Update callback returns nil, and roll back entirely
// when it returns an error.
type Tx struct {
	s *Store
	q querier
}

// Update runs fn inside a single SQLite transaction. SQLite serializes
// writers at the database level, so the transaction spans every collection
// regardless of which ones fn touches.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{s: s, q: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Get loads the record stored under key into dest.
// Returns ErrNotFound when the key is absent.
func (tx *Tx) Get(ctx context.Context, collection, key string, dest any) error {
	c, err := tx.s.lookup(collection)
	if err != nil {
		return err
	}
	return getRecord(ctx, tx.q, c, key, dest)
}

// Put upserts the record under key within the transaction.
func (tx *Tx) Put(ctx context.Context, collection, key string, record any) error {
	c, err := tx.s.lookup(collection)
	if err != nil {
		return err
	}
	return putRecord(ctx, tx.q, c, key, record)
}

// Delete removes the record under key within the transaction.
func (tx *Tx) Delete(ctx context.Context, collection, key string) error {
	c, err := tx.s.lookup(collection)
	if err != nil {
		return err
	}
	return deleteRecord(ctx, tx.q, c, key)
}

// GetAll loads every record of the collection into dest within the
// transaction, seeing the transaction's own uncommitted writes.
func (tx *Tx) GetAll(ctx context.Context, collection string, dest any) error {
	c, err := tx.s.lookup(collection)
	if err != nil {
		return err
	}
	return getAllRecords(ctx, tx.q, c, "", nil, dest)
}
