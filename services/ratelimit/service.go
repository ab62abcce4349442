package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"go.uber.org/zap"
)

const (
	counterPrefix = "ratelimit:"
	blockPrefix   = "ratelimit:block:"
	blockSentinel = "1"
)

// Result is the structured outcome of a rate-limit check. Expected outcomes
// (over limit, blocked) are never errors.
type Result struct {
	Allowed       bool  `json:"allowed"`
	Blocked       bool  `json:"blocked"`
	Count         int64 `json:"count"`
	Limit         int   `json:"limit"`
	WindowSeconds int   `json:"window_seconds"`
	ResetSeconds  int   `json:"reset_seconds"`
	// FailedOpen marks a result that was allowed only because the store was
	// unreachable.
	FailedOpen bool `json:"failed_open,omitempty"`
}

type Service struct {
	store  kv.Store
	config *config.Config
	logger *logging.Service
}

type RateLimitService interface {
	Check(ctx context.Context, scope, action, actor string, window time.Duration, limit int) Result
	CheckWithBlock(ctx context.Context, scope, action, actor string, window time.Duration, limit int) Result
	Block(ctx context.Context, action, actor string) error
	IsBlocked(ctx context.Context, action, actor string) (bool, error)
}

func NewService(store kv.Store, cfg *config.Config, logger *logging.Service) *Service {
	return &Service{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

func counterKey(scope, action, actor string) string {
	return counterPrefix + scope + ":" + action + ":" + actor
}

func blockKey(action, actor string) string {
	return blockPrefix + action + ":" + actor
}

// Check runs a fixed-window counter: increment first, then compare, so that
// concurrent requests can never slip under the limit through a check-then-act
// race. Rejected requests still count. Store faults fail open: an infra blip
// must not become a full outage.
func (s *Service) Check(ctx context.Context, scope, action, actor string, window time.Duration, limit int) Result {
	key := counterKey(scope, action, actor)
	windowSeconds := int(window / time.Second)

	count, err := s.store.Incr(ctx, key)
	if err != nil {
		return s.failOpen(err, limit, windowSeconds)
	}

	if count == 1 {
		// This increment started the window.
		if _, err := s.store.Expire(ctx, key, window); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to set rate limit window expiry",
					zap.String("key", key),
					zap.Error(err))
			}
		}
	}

	resetSeconds := windowSeconds
	ttl, ok, err := s.store.TTL(ctx, key)
	switch {
	case err != nil:
		if s.logger != nil {
			s.logger.Warn("failed to read rate limit window ttl",
				zap.String("key", key),
				zap.Error(err))
		}
	case ok && ttl > 0:
		resetSeconds = int(ttl / time.Second)
	case ok && ttl == 0:
		// Counter exists without expiry: the earlier expire raced or failed.
		// Setting it again is idempotent.
		if _, err := s.store.Expire(ctx, key, window); err != nil && s.logger != nil {
			s.logger.Warn("failed to repair rate limit window expiry",
				zap.String("key", key),
				zap.Error(err))
		}
	}

	allowed := count <= int64(limit)
	if !allowed && s.logger != nil {
		s.logger.Info("rate limit exceeded",
			zap.String("scope", scope),
			zap.String("action", action),
			zap.String("actor", actor),
			zap.Int64("count", count),
			zap.Int("limit", limit))
	}

	return Result{
		Allowed:       allowed,
		Count:         count,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		ResetSeconds:  resetSeconds,
	}
}

// CheckWithBlock consults the long-lived block record before touching the
// window counter; a blocked actor is rejected without costing the window
// anything.
func (s *Service) CheckWithBlock(ctx context.Context, scope, action, actor string, window time.Duration, limit int) Result {
	blocked, err := s.IsBlocked(ctx, action, actor)
	if err != nil {
		return s.failOpen(err, limit, int(window/time.Second))
	}

	if blocked {
		resetSeconds := int(s.config.RateLimit.BlockTTL / time.Second)
		if ttl, ok, err := s.store.TTL(ctx, blockKey(action, actor)); err == nil && ok && ttl > 0 {
			resetSeconds = int(ttl / time.Second)
		}

		return Result{
			Blocked:       true,
			Limit:         limit,
			WindowSeconds: int(window / time.Second),
			ResetSeconds:  resetSeconds,
		}
	}

	return s.Check(ctx, scope, action, actor, window, limit)
}

// Block writes the long-TTL block record for (action, actor), converting a
// burst limit into a cool-down ban.
func (s *Service) Block(ctx context.Context, action, actor string) error {
	if err := s.store.Set(ctx, blockKey(action, actor), blockSentinel, s.config.RateLimit.BlockTTL); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to write block record",
				zap.String("action", action),
				zap.String("actor", actor),
				zap.Error(err))
		}
		return fmt.Errorf("failed to write block record: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("actor blocked",
			zap.String("action", action),
			zap.String("actor", actor),
			zap.Duration("block_ttl", s.config.RateLimit.BlockTTL))
	}

	return nil
}

func (s *Service) IsBlocked(ctx context.Context, action, actor string) (bool, error) {
	blocked, err := s.store.Exists(ctx, blockKey(action, actor))
	if err != nil {
		return false, fmt.Errorf("block record lookup failed: %w", err)
	}
	return blocked, nil
}

func (s *Service) failOpen(err error, limit, windowSeconds int) Result {
	if s.logger != nil {
		s.logger.Error("rate limit check failed open", zap.Error(err))
	}
	return Result{
		Allowed:       true,
		Limit:         limit,
		WindowSeconds: windowSeconds,
		ResetSeconds:  windowSeconds,
		FailedOpen:    true,
	}
}
