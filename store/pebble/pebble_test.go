package pebble

import (
	"context"
	"testing"

	"github.com/defistate/reserve-ledger-go/store"
	"github.com/defistate/reserve-ledger-go/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestStore_ReopenKeepsValues(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, []byte("reserve/state"), []byte(`{"token_reserve":1}`)))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	val, err := reopened.Get(ctx, []byte("reserve/state"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"token_reserve":1}`, string(val))
}
