// Package store defines the get/set capability the ledger persists its record through.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("store: key not found")

// Store is an opaque key-value medium.
//
// CONTRACT:
//  1. Get returns ErrNotFound (possibly wrapped) for an absent key and a value the
//     caller may retain and modify.
//  2. Set is durable once it returns nil.
type Store interface {
	Get(ctx context.Context, key []byte) ([]byte, error)
	Set(ctx context.Context, key, value []byte) error
	Close() error
}
