package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chorushq/sessionkit/services/account"
	"github.com/chorushq/sessionkit/services/password"
	"github.com/chorushq/sessionkit/services/ratelimit"
	"github.com/chorushq/sessionkit/services/token"
	"github.com/chorushq/sessionkit/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct {
	result token.ValidationResult
	err    error
	calls  int
}

func (f *fakeValidator) Validate(ctx context.Context, username, tok string, allowExpired bool) (token.ValidationResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeAccounts struct {
	acct *account.Account
	err  error
}

func (f *fakeAccounts) Get(ctx context.Context, username string) (*account.Account, error) {
	return f.acct, f.err
}

type fakeLimiter struct {
	result ratelimit.Result
	calls  int
}

func (f *fakeLimiter) Check(ctx context.Context, scope, action, actor string, window time.Duration, limit int) ratelimit.Result {
	f.calls++
	return f.result
}

func newFakeGate(validator *fakeValidator, accounts *fakeAccounts, limiter *fakeLimiter) *Service {
	return NewService(testutils.GetTestConfig(), nil, validator, accounts, limiter)
}

func TestAuthenticate_Allowed(t *testing.T) {
	validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
	accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
	service := newFakeGate(validator, accounts, &fakeLimiter{})

	decision := service.Authenticate(context.Background(), "Alice", "sometoken", false)

	assert.True(t, decision.Allowed)
	assert.Equal(t, "alice", decision.Username)
	assert.Equal(t, ReasonNone, decision.Reason)
	assert.Equal(t, 1, validator.calls)
}

func TestAuthenticate_MalformedCredentials(t *testing.T) {
	validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
	service := newFakeGate(validator, &fakeAccounts{}, &fakeLimiter{})

	tests := []struct {
		name     string
		username string
		token    string
	}{
		{"empty username", "", "sometoken"},
		{"empty token", "alice", ""},
		{"username too short", "ab", "sometoken"},
		{"username with invalid characters", "al ice!", "sometoken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := service.Authenticate(context.Background(), tt.username, tt.token, false)

			assert.False(t, decision.Allowed)
			assert.Equal(t, ReasonInvalidCredentials, decision.Reason)
		})
	}

	// none of the malformed requests may reach the token store
	assert.Zero(t, validator.calls)
}

func TestAuthenticate_StandingBeforeTokens(t *testing.T) {
	t.Run("blocked identifier", func(t *testing.T) {
		validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
		service := newFakeGate(validator, &fakeAccounts{}, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "Admin", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonAccountRestricted, decision.Reason)
		assert.Zero(t, validator.calls, "standing checks must precede token checks")
	})

	t.Run("banned account", func(t *testing.T) {
		validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
		accounts := &fakeAccounts{acct: &account.Account{Username: "alice", Banned: true}}
		service := newFakeGate(validator, accounts, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "alice", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonAccountRestricted, decision.Reason)
		assert.Zero(t, validator.calls, "a banned account's tokens must be inert")
	})
}

func TestAuthenticate_GenericFailures(t *testing.T) {
	t.Run("unknown account", func(t *testing.T) {
		accounts := &fakeAccounts{err: account.ErrAccountNotFound}
		service := newFakeGate(&fakeValidator{}, accounts, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "ghost", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonInvalidCredentials, decision.Reason)
	})

	t.Run("wrong token", func(t *testing.T) {
		validator := &fakeValidator{result: token.ValidationResult{}}
		accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
		service := newFakeGate(validator, accounts, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "alice", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonInvalidCredentials, decision.Reason, "wrong token and unknown account must look identical")
	})
}

func TestAuthenticate_FailsClosed(t *testing.T) {
	t.Run("standing check unavailable", func(t *testing.T) {
		accounts := &fakeAccounts{err: errors.New("store timeout")}
		service := newFakeGate(&fakeValidator{}, accounts, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "alice", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonStoreUnavailable, decision.Reason)
	})

	t.Run("token check unavailable", func(t *testing.T) {
		validator := &fakeValidator{err: errors.New("store timeout")}
		accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
		service := newFakeGate(validator, accounts, &fakeLimiter{})

		decision := service.Authenticate(context.Background(), "alice", "sometoken", false)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonStoreUnavailable, decision.Reason)
	})
}

func TestAuthenticate_GraceTolerance(t *testing.T) {
	validator := &fakeValidator{result: token.ValidationResult{Valid: true, Expired: true}}
	accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
	service := newFakeGate(validator, accounts, &fakeLimiter{})

	decision := service.Authenticate(context.Background(), "alice", "sometoken", true)

	assert.True(t, decision.Allowed)
	assert.True(t, decision.Expired)
}

func TestAuthenticateAndLimit(t *testing.T) {
	t.Run("within quota", func(t *testing.T) {
		validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
		accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
		limiter := &fakeLimiter{result: ratelimit.Result{Allowed: true, Count: 1, Limit: 5}}
		service := newFakeGate(validator, accounts, limiter)

		decision := service.AuthenticateAndLimit(context.Background(), "alice", "sometoken", "send_message", time.Minute, 5)

		assert.True(t, decision.Allowed)
		assert.Equal(t, 1, limiter.calls)
	})

	t.Run("over quota", func(t *testing.T) {
		validator := &fakeValidator{result: token.ValidationResult{Valid: true}}
		accounts := &fakeAccounts{acct: &account.Account{Username: "alice"}}
		limiter := &fakeLimiter{result: ratelimit.Result{Allowed: false, Count: 6, Limit: 5, ResetSeconds: 42}}
		service := newFakeGate(validator, accounts, limiter)

		decision := service.AuthenticateAndLimit(context.Background(), "alice", "sometoken", "send_message", time.Minute, 5)

		assert.False(t, decision.Allowed)
		assert.Equal(t, ReasonRateLimited, decision.Reason)
		assert.Equal(t, 42, decision.RetryAfter)
	})

	t.Run("authentication failure skips the limiter", func(t *testing.T) {
		limiter := &fakeLimiter{result: ratelimit.Result{Allowed: true}}
		service := newFakeGate(&fakeValidator{}, &fakeAccounts{err: account.ErrAccountNotFound}, limiter)

		decision := service.AuthenticateAndLimit(context.Background(), "alice", "sometoken", "send_message", time.Minute, 5)

		assert.False(t, decision.Allowed)
		assert.Zero(t, limiter.calls)
	})
}

// TestAuthenticate_EndToEnd runs the gate against the real services over the
// in-process store.
func TestAuthenticate_EndToEnd(t *testing.T) {
	store, _ := testutils.SetupTestStore(t)
	cfg := testutils.GetTestConfig()
	ctx := context.Background()

	tokens := token.NewService(store, cfg, nil)
	passwords := password.NewService(store, cfg, nil)
	accounts := account.NewService(store, cfg, nil, tokens, passwords)
	limiter := ratelimit.NewService(store, cfg, nil)
	service := NewService(cfg, nil, tokens, accounts, limiter)

	_, err := accounts.Register(ctx, "alice")
	require.NoError(t, err)
	tok, err := tokens.Issue(ctx, "alice")
	require.NoError(t, err)

	decision := service.Authenticate(ctx, "alice", tok, false)
	assert.True(t, decision.Allowed)

	require.NoError(t, accounts.Ban(ctx, "alice", "spam"))

	decision = service.Authenticate(ctx, "alice", tok, false)
	assert.False(t, decision.Allowed)
	assert.Equal(t, ReasonAccountRestricted, decision.Reason)
}
