package leveldb

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
	require.NoError(t, s.Set(ctx, []byte("reserve/state"), []byte("payload")))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	val, err := reopened.Get(ctx, []byte("reserve/state"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), val)
}
