package gate

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/internal/identity"
	"github.com/chorushq/sessionkit/services/account"
	"github.com/chorushq/sessionkit/services/logging"
	"github.com/chorushq/sessionkit/services/ratelimit"
	"github.com/chorushq/sessionkit/services/token"
	"go.uber.org/zap"
)

// Reason classifies why a request was rejected. Messages derived from these
// are deliberately generic: a caller can never tell "no such user" apart from
// "wrong token".
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonAccountRestricted  Reason = "account_restricted"
	ReasonStoreUnavailable   Reason = "store_unavailable"
)

// Decision is the single accept/reject outcome consumed by every protected
// operation.
type Decision struct {
	Allowed  bool
	Expired  bool
	Username string
	Reason   Reason
	// RetryAfter is set in seconds when Reason is ReasonRateLimited.
	RetryAfter int
}

// TokenValidator is the slice of the token service the gate depends on.
type TokenValidator interface {
	Validate(ctx context.Context, username, token string, allowExpired bool) (token.ValidationResult, error)
}

// AccountReader is the slice of the account service the gate depends on.
type AccountReader interface {
	Get(ctx context.Context, username string) (*account.Account, error)
}

// RateLimiter is the slice of the rate limit service the gate depends on.
type RateLimiter interface {
	Check(ctx context.Context, scope, action, actor string, window time.Duration, limit int) ratelimit.Result
}

// Service composes standing checks with token validation. Standing always
// comes first: a banned account's tokens are inert even before revocation
// lands.
type Service struct {
	config   *config.Config
	logger   *logging.Service
	tokens   TokenValidator
	accounts AccountReader
	limiter  RateLimiter
}

type GateService interface {
	Authenticate(ctx context.Context, username, tok string, allowExpired bool) Decision
	AuthenticateAndLimit(ctx context.Context, username, tok, action string, window time.Duration, limit int) Decision
}

func NewService(cfg *config.Config, logger *logging.Service, tokens TokenValidator, accounts AccountReader, limiter RateLimiter) *Service {
	return &Service{
		config:   cfg,
		logger:   logger,
		tokens:   tokens,
		accounts: accounts,
		limiter:  limiter,
	}
}

// Authenticate produces the accept/reject decision for a credential pair.
// Token validation fails closed: if the store cannot answer, the request is
// denied rather than trusted.
func (s *Service) Authenticate(ctx context.Context, username, tok string, allowExpired bool) Decision {
	username = identity.Normalize(username)

	if tok == "" || !identity.Valid(username, s.config.Auth.MinUsernameLength, s.config.Auth.MaxUsernameLength) {
		return Decision{Reason: ReasonInvalidCredentials}
	}

	if slices.Contains(s.config.Auth.BlockedUsernames, username) {
		if s.logger != nil {
			s.logger.Warn("request for blocked identifier", zap.String("username", username))
		}
		return Decision{Username: username, Reason: ReasonAccountRestricted}
	}

	acct, err := s.accounts.Get(ctx, username)
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		return Decision{Reason: ReasonInvalidCredentials}
	case err != nil:
		if s.logger != nil {
			s.logger.Error("standing check failed, denying",
				zap.String("username", username),
				zap.Error(err))
		}
		return Decision{Username: username, Reason: ReasonStoreUnavailable}
	}

	if acct.Banned {
		if s.logger != nil {
			s.logger.Warn("request for banned account", zap.String("username", username))
		}
		return Decision{Username: username, Reason: ReasonAccountRestricted}
	}

	result, err := s.tokens.Validate(ctx, username, tok, allowExpired)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("token validation failed, denying",
				zap.String("username", username),
				zap.Error(err))
		}
		return Decision{Username: username, Reason: ReasonStoreUnavailable}
	}
	if !result.Valid {
		return Decision{Username: username, Reason: ReasonInvalidCredentials}
	}

	return Decision{
		Allowed:  true,
		Expired:  result.Expired,
		Username: username,
	}
}

// AuthenticateAndLimit authenticates and then charges the actor's window for
// action. The limiter fails open internally, so a store fault here degrades
// to an unthrottled request, never a denial.
func (s *Service) AuthenticateAndLimit(ctx context.Context, username, tok, action string, window time.Duration, limit int) Decision {
	decision := s.Authenticate(ctx, username, tok, false)
	if !decision.Allowed {
		return decision
	}

	result := s.limiter.Check(ctx, "user", action, decision.Username, window, limit)
	if !result.Allowed {
		return Decision{
			Username:   decision.Username,
			Reason:     ReasonRateLimited,
			RetryAfter: result.ResetSeconds,
		}
	}

	return decision
}
