package password

import (
	"context"
	"strings"
	"testing"

	"github.com/chorushq/sessionkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	store, _ := testutils.SetupTestStore(t)
	return NewService(store, testutils.GetTestConfig(), nil)
}

func TestHashAndVerify(t *testing.T) {
	service := newTestService(t)

	hash, err := service.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.NoError(t, service.Verify("correct horse battery staple", hash))
	assert.ErrorIs(t, service.Verify("wrong password", hash), ErrInvalidCredentials)
}

func TestNewService_ClampsInvalidCost(t *testing.T) {
	store, _ := testutils.SetupTestStore(t)
	cfg := testutils.GetTestConfig()
	cfg.Auth.BcryptCost = 99

	service := NewService(store, cfg, nil)
	assert.Equal(t, bcrypt.DefaultCost, service.config.Auth.BcryptCost)
}

func TestHashRoundTrip(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	hash, err := service.Hash("s3cret")
	require.NoError(t, err)

	require.NoError(t, service.SetHash(ctx, "Alice", hash))

	t.Run("retrieved under normalized username", func(t *testing.T) {
		got, ok, err := service.GetHash(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, hash, got)
	})

	t.Run("absent for unknown account", func(t *testing.T) {
		_, ok, err := service.GetHash(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		require.NoError(t, service.DeleteHash(ctx, "alice"))

		_, ok, err := service.GetHash(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestVerifyUser(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	hash, err := service.Hash("s3cret")
	require.NoError(t, err)
	require.NoError(t, service.SetHash(ctx, "alice", hash))

	t.Run("correct password", func(t *testing.T) {
		assert.NoError(t, service.VerifyUser(ctx, "alice", "s3cret"))
	})

	t.Run("wrong password and missing record are indistinguishable", func(t *testing.T) {
		wrongPassword := service.VerifyUser(ctx, "alice", "nope")
		missingRecord := service.VerifyUser(ctx, "token-only-account", "nope")

		assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
		assert.ErrorIs(t, missingRecord, ErrInvalidCredentials)
		assert.Equal(t, wrongPassword.Error(), missingRecord.Error())
	})
}
