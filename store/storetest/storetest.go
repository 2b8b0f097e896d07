// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/defistate/reserve-ledger-go/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises a store.Store produced by newStore. newStore is called once
// per subtest and the returned store is closed by Run.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get_Absent_ReturnsErrNotFound", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		val, err := s.Get(ctx, []byte("missing"))
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.Nil(t, val)
	})

	t.Run("Set_Then_Get", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, []byte("k"), []byte("v1")))
		val, err := s.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), val)
	})

	t.Run("Set_Overwrites", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		require.NoError(t, s.Set(ctx, []byte("k"), []byte("v1")))
		require.NoError(t, s.Set(ctx, []byte("k"), []byte("v2")))
		val, err := s.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), val)
	})

	t.Run("Values_Are_Copied", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		input := []byte("abc")
		require.NoError(t, s.Set(ctx, []byte("k"), input))
		input[0] = 'x'

		val, err := s.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), val, "mutating the Set input must not leak into the store")

		val[1] = 'y'
		again, err := s.Get(ctx, []byte("k"))
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again, "mutating a Get result must not leak into the store")
	})

	t.Run("Canceled_Context", func(t *testing.T) {
		s := newStore(t)
		defer s.Close()

		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := s.Get(canceled, []byte("k"))
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, s.Set(canceled, []byte("k"), []byte("v")), context.Canceled)
	})
}
