package account

import (
	"context"
	"testing"
	"time"

	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/password"
	"github.com/chorushq/sessionkit/services/token"
	"github.com/chorushq/sessionkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *token.Service, *password.Service, kv.Store) {
	t.Helper()

	store, _ := testutils.SetupTestStore(t)
	cfg := testutils.GetTestConfig()
	tokens := token.NewService(store, cfg, nil)
	passwords := password.NewService(store, cfg, nil)
	service := NewService(store, cfg, nil, tokens, passwords)
	return service, tokens, passwords, store
}

func TestRegister(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	acct, err := service.Register(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)
	assert.False(t, acct.Banned)
	assert.False(t, acct.CreatedAt.IsZero())

	t.Run("duplicate registration rejected", func(t *testing.T) {
		_, err := service.Register(ctx, "ALICE")
		assert.ErrorIs(t, err, ErrAccountExists)
	})

	t.Run("invalid usernames rejected", func(t *testing.T) {
		for _, username := range []string{"", "ab", "has space", "bad!chars"} {
			_, err := service.Register(ctx, username)
			assert.ErrorIs(t, err, ErrInvalidUsername, "username %q", username)
		}
	})

	t.Run("registered accounts are listed", func(t *testing.T) {
		_, err := service.Register(ctx, "bob")
		require.NoError(t, err)

		usernames, err := service.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, usernames)
	})
}

func TestGet(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice")
	require.NoError(t, err)

	acct, err := service.Get(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", acct.Username)

	_, err = service.Get(ctx, "nobody")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestTouchActive(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()

	acct, err := service.Register(ctx, "alice")
	require.NoError(t, err)

	later := acct.LastActive.Add(time.Hour)
	service.now = func() time.Time { return later }

	require.NoError(t, service.TouchActive(ctx, "alice"))

	updated, err := service.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, updated.LastActive.After(acct.LastActive))
}

func TestBanAndUnban(t *testing.T) {
	service, tokens, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice")
	require.NoError(t, err)

	tok, err := tokens.Issue(ctx, "alice")
	require.NoError(t, err)

	require.NoError(t, service.Ban(ctx, "alice", "spam"))

	acct, err := service.Get(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acct.Banned)
	assert.Equal(t, "spam", acct.BanReason)
	require.NotNil(t, acct.BannedAt)

	t.Run("ban revokes live tokens", func(t *testing.T) {
		result, err := tokens.Validate(ctx, "alice", tok, true)
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("unban clears restriction", func(t *testing.T) {
		require.NoError(t, service.Unban(ctx, "alice"))

		acct, err := service.Get(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, acct.Banned)
		assert.Empty(t, acct.BanReason)
		assert.Nil(t, acct.BannedAt)
	})

	t.Run("banning an unknown account fails", func(t *testing.T) {
		assert.ErrorIs(t, service.Ban(ctx, "nobody", "spam"), ErrAccountNotFound)
	})
}

func TestDelete(t *testing.T) {
	service, tokens, passwords, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Register(ctx, "alice")
	require.NoError(t, err)

	tok, err := tokens.Issue(ctx, "alice")
	require.NoError(t, err)

	hash, err := passwords.Hash("s3cret")
	require.NoError(t, err)
	require.NoError(t, passwords.SetHash(ctx, "alice", hash))

	require.NoError(t, service.Delete(ctx, "alice"))

	t.Run("account record gone", func(t *testing.T) {
		_, err := service.Get(ctx, "alice")
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("tokens purged", func(t *testing.T) {
		result, err := tokens.Validate(ctx, "alice", tok, true)
		require.NoError(t, err)
		assert.False(t, result.Valid)
	})

	t.Run("password hash purged", func(t *testing.T) {
		_, ok, err := passwords.GetHash(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("index entry purged", func(t *testing.T) {
		usernames, err := service.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, usernames)
	})

	t.Run("deletion is idempotent", func(t *testing.T) {
		assert.NoError(t, service.Delete(ctx, "alice"))
	})
}
