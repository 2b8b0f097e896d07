package leveldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/defistate/reserve-ledger-go/store"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// Store is a store.Store backed by a goleveldb database directory.
type Store struct {
	db    *leveldb.DB
	write *opt.WriteOptions
}

// Open opens (or creates) the leveldb database in dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", dir, err)
	}
	return &Store{
		db:    db,
		write: &opt.WriteOptions{Sync: true},
	}, nil
}

// Get returns the value stored under key, or store.ErrNotFound.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// goleveldb returns a fresh slice the caller owns.
	val, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

// Set writes value under key and syncs it to disk.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Put(key, value, s.write)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
