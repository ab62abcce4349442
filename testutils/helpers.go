package testutils

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/kv"
	"github.com/stretchr/testify/require"
)

// SetupTestStore runs an in-process store and returns a connected adapter.
// The miniredis handle is returned so tests can fast-forward TTLs.
func SetupTestStore(t *testing.T) (kv.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	store, err := kv.NewRedisStore(config.StoreConfig{
		Addr:         mr.Addr(),
		DialTimeout:  time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}
