package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/internal/identity"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
	ErrTokenInvalid          = errors.New("invalid token")
	// ErrTokenSuperseded rejects a refresh driven by a token that was already
	// rotated away: one stale credential must never mint two replacements.
	ErrTokenSuperseded = errors.New("token already superseded")
	// ErrScanTruncated reports that a capped prefix scan stopped before the
	// keyspace was exhausted; callers should retry rather than assume a
	// complete revocation.
	ErrScanTruncated = errors.New("token scan truncated before completion")
)

const (
	userTokenPrefix = "token:user:"
	gracePrefix     = "token:last:"
)

type Service struct {
	store  kv.Store
	config *config.Config
	logger *logging.Service
	now    func() time.Time
}

type TokenService interface {
	Issue(ctx context.Context, username string) (string, error)
	Validate(ctx context.Context, username, token string, allowExpired bool) (ValidationResult, error)
	Refresh(ctx context.Context, username, oldToken string) (string, error)
	RevokeOne(ctx context.Context, token string) (int, error)
	RevokeAll(ctx context.Context, username string) (int, error)
	List(ctx context.Context, username string) ([]TokenInfo, error)
}

func NewService(store kv.Store, cfg *config.Config, logger *logging.Service) *Service {
	if logger != nil {
		logger.Info("initializing token service",
			zap.Duration("session_lifetime", cfg.Token.SessionLifetime),
			zap.Duration("grace_window", cfg.Token.GraceWindow),
			zap.Int("token_length", cfg.Token.TokenLength))
	}

	return &Service{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

func userTokenKey(username, token string) string {
	return userTokenPrefix + username + ":" + token
}

func graceKey(username string) string {
	return gracePrefix + username
}

// Issue creates a fresh opaque token for username and persists it with the
// session lifetime as TTL.
func (s *Service) Issue(ctx context.Context, username string) (string, error) {
	username = identity.Normalize(username)

	token, err := s.generateSecureToken()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate secure token", zap.Error(err))
		}
		return "", ErrTokenGenerationFailed
	}

	record := tokenRecord{
		ID:       uuid.NewString(),
		IssuedAt: s.now().UTC(),
	}

	if err := kv.SetJSON(ctx, s.store, userTokenKey(username, token), &record, s.config.Token.SessionLifetime); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store token",
				zap.String("username", username),
				zap.Error(err))
		}
		return "", fmt.Errorf("failed to store token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("token issued",
			zap.String("username", username),
			zap.String("token_id", record.ID))
	}

	return token, nil
}

// Validate checks (username, token) in O(1) regardless of how many tokens the
// account holds. A hit refreshes the key TTL, keeping expiry sliding on use.
// With allowExpired set, a miss falls back to the grace record; acceptance
// there is reported with Expired set and never resurrects the token for
// future full-validity use.
func (s *Service) Validate(ctx context.Context, username, token string, allowExpired bool) (ValidationResult, error) {
	username = identity.Normalize(username)
	if username == "" || token == "" {
		return ValidationResult{}, nil
	}

	key := userTokenKey(username, token)

	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("token lookup failed: %w", err)
	}

	if exists {
		if _, err := s.store.Expire(ctx, key, s.config.Token.SessionLifetime); err != nil {
			// The token stays valid; only the sliding extension was lost.
			if s.logger != nil {
				s.logger.Warn("failed to slide token expiry",
					zap.String("username", username),
					zap.Error(err))
			}
		}
		return ValidationResult{Valid: true}, nil
	}

	if !allowExpired {
		return ValidationResult{}, nil
	}

	grace, err := kv.GetJSON[graceRecord](ctx, s.store, graceKey(username))
	if err != nil {
		return ValidationResult{}, fmt.Errorf("grace record lookup failed: %w", err)
	}
	if grace == nil || grace.Token != token {
		return ValidationResult{}, nil
	}
	if !s.now().Before(grace.ExpiredAt.Add(s.config.Token.GraceWindow)) {
		return ValidationResult{}, nil
	}

	if s.logger != nil {
		s.logger.Debug("superseded token accepted within grace window",
			zap.String("username", username),
			zap.Time("expired_at", grace.ExpiredAt))
	}

	return ValidationResult{Valid: true, Expired: true}, nil
}

// Refresh rotates oldToken into a new one. The old token is first recorded as
// the account's grace token, then deleted, then the replacement is issued.
// The three writes are not transactional: a concurrent refresh losing the
// race sees the grace record and is turned away with ErrTokenSuperseded,
// leaving the account with exactly one winner token and never zero valid
// tokens for longer than the grace window.
func (s *Service) Refresh(ctx context.Context, username, oldToken string) (string, error) {
	username = identity.Normalize(username)

	result, err := s.Validate(ctx, username, oldToken, true)
	if err != nil {
		return "", err
	}
	if !result.Valid {
		if s.logger != nil {
			s.logger.Warn("refresh rejected for unknown token",
				zap.String("username", username))
		}
		return "", ErrTokenInvalid
	}
	if result.Expired {
		// Grace acceptance keeps the double-submitting client authenticated,
		// but the rotation it retried already happened.
		if s.logger != nil {
			s.logger.Warn("refresh rejected for superseded token",
				zap.String("username", username))
		}
		return "", ErrTokenSuperseded
	}

	grace := graceRecord{
		Token:     oldToken,
		ExpiredAt: s.now().UTC(),
	}
	if err := kv.SetJSON(ctx, s.store, graceKey(username), &grace, s.config.Token.GraceWindow); err != nil {
		return "", fmt.Errorf("failed to store grace record: %w", err)
	}

	if _, err := s.store.Del(ctx, userTokenKey(username, oldToken)); err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to delete superseded token",
				zap.String("username", username),
				zap.Error(err))
		}
	}

	newToken, err := s.Issue(ctx, username)
	if err != nil {
		return "", err
	}

	if s.logger != nil {
		s.logger.Info("token refreshed", zap.String("username", username))
	}

	return newToken, nil
}

// RevokeOne deletes a token without knowing its owner, by matching the token
// suffix across the user token namespace. The scan is capped; a truncated
// scan surfaces ErrScanTruncated alongside the partial delete count.
func (s *Service) RevokeOne(ctx context.Context, token string) (int, error) {
	if token == "" {
		return 0, nil
	}

	keys, truncated, err := s.scanKeys(ctx, userTokenPrefix+"*:"+token)
	if err != nil {
		return 0, err
	}

	deleted, err := s.deleteKeys(ctx, keys)
	if err != nil {
		return deleted, err
	}

	if s.logger != nil {
		s.logger.Info("token revoked",
			zap.Int("deleted", deleted),
			zap.Bool("truncated", truncated))
	}

	if truncated {
		return deleted, ErrScanTruncated
	}
	return deleted, nil
}

// RevokeAll deletes every live token for username plus its grace record and
// returns the number of token keys removed. Used by logout-all-devices,
// account bans and account deletion.
func (s *Service) RevokeAll(ctx context.Context, username string) (int, error) {
	username = identity.Normalize(username)

	keys, truncated, err := s.scanKeys(ctx, userTokenPrefix+username+":*")
	if err != nil {
		return 0, err
	}

	deleted, err := s.deleteKeys(ctx, keys)
	if err != nil {
		return deleted, err
	}

	if _, err := s.store.Del(ctx, graceKey(username)); err != nil {
		return deleted, fmt.Errorf("failed to delete grace record: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("all tokens revoked",
			zap.String("username", username),
			zap.Int("deleted", deleted),
			zap.Bool("truncated", truncated))
	}

	if truncated {
		return deleted, ErrScanTruncated
	}
	return deleted, nil
}

// List enumerates the account's live tokens with masked identifiers, newest
// first.
func (s *Service) List(ctx context.Context, username string) ([]TokenInfo, error) {
	username = identity.Normalize(username)

	keys, truncated, err := s.scanKeys(ctx, userTokenPrefix+username+":*")
	if err != nil {
		return nil, err
	}

	infos := make([]TokenInfo, 0, len(keys))
	for _, key := range keys {
		record, err := kv.GetJSON[tokenRecord](ctx, s.store, key)
		if err != nil {
			return nil, err
		}
		if record == nil {
			// expired between scan and read
			continue
		}

		infos = append(infos, TokenInfo{
			ID:       record.ID,
			Masked:   maskToken(key[strings.LastIndex(key, ":")+1:]),
			IssuedAt: record.IssuedAt,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].IssuedAt.After(infos[j].IssuedAt)
	})

	if truncated {
		return infos, ErrScanTruncated
	}
	return infos, nil
}

// scanKeys pages through the keyspace with a hard iteration cap so the loop
// terminates even while keys are being added concurrently.
func (s *Service) scanKeys(ctx context.Context, match string) ([]string, bool, error) {
	var (
		keys   []string
		cursor uint64
	)

	for page := 0; page < s.config.Token.ScanMaxPages; page++ {
		batch, next, err := s.store.Scan(ctx, cursor, match, s.config.Token.ScanPageSize)
		if err != nil {
			return nil, false, fmt.Errorf("token scan failed: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, false, nil
		}
		cursor = next
	}

	if s.logger != nil {
		s.logger.Warn("token scan hit iteration cap",
			zap.String("match", match),
			zap.Int("max_pages", s.config.Token.ScanMaxPages))
	}

	return keys, true, nil
}

func (s *Service) deleteKeys(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.store.Del(ctx, keys...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", err)
	}
	return int(n), nil
}

func (s *Service) generateSecureToken() (string, error) {
	tokenBytes := make([]byte, s.config.Token.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(tokenBytes), nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8] + "..."
}
