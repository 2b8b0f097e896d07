package pebble

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/defistate/reserve-ledger-go/store"
)

// Store is a store.Store backed by a pebble database directory.
// Every write is synced before Set returns.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the pebble database in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{
		DisableWAL: false,
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Get returns a copy of the value stored under key, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	// val is only valid until closer is closed.
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set writes value under key and syncs it to disk.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Set(key, value, pebble.Sync)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
