package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/internal/identity"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"go.uber.org/zap"
)

var (
	ErrAccountExists   = errors.New("account already exists")
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidUsername = errors.New("invalid username")
)

const (
	keyPrefix = "account:"
	indexKey  = "accounts:index"
)

// TokenRevoker is the slice of the token service the account lifecycle needs.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, username string) (int, error)
}

// CredentialPurger is the slice of the password service account deletion needs.
type CredentialPurger interface {
	DeleteHash(ctx context.Context, username string) error
}

type Service struct {
	store       kv.Store
	config      *config.Config
	logger      *logging.Service
	tokens      TokenRevoker
	credentials CredentialPurger
	now         func() time.Time
}

type AccountService interface {
	Register(ctx context.Context, username string) (*Account, error)
	Get(ctx context.Context, username string) (*Account, error)
	TouchActive(ctx context.Context, username string) error
	Ban(ctx context.Context, username, reason string) error
	Unban(ctx context.Context, username string) error
	Delete(ctx context.Context, username string) error
	List(ctx context.Context) ([]string, error)
}

func NewService(store kv.Store, cfg *config.Config, logger *logging.Service, tokens TokenRevoker, credentials CredentialPurger) *Service {
	return &Service{
		store:       store,
		config:      cfg,
		logger:      logger,
		tokens:      tokens,
		credentials: credentials,
		now:         time.Now,
	}
}

func accountKey(username string) string {
	return keyPrefix + username
}

// Register creates the account record if the username is free. The record is
// written create-only so a racing duplicate registration loses cleanly.
func (s *Service) Register(ctx context.Context, username string) (*Account, error) {
	username = identity.Normalize(username)
	if !identity.Valid(username, s.config.Auth.MinUsernameLength, s.config.Auth.MaxUsernameLength) {
		return nil, ErrInvalidUsername
	}

	now := s.now().UTC()
	acct := Account{
		Username:   username,
		CreatedAt:  now,
		LastActive: now,
	}

	created, err := kv.SetJSONNX(ctx, s.store, accountKey(username), &acct, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	if !created {
		return nil, ErrAccountExists
	}

	if err := s.store.SAdd(ctx, indexKey, username); err != nil {
		// The record exists; a missing index entry only degrades listings.
		if s.logger != nil {
			s.logger.Warn("failed to index new account",
				zap.String("username", username),
				zap.Error(err))
		}
	}

	if s.logger != nil {
		s.logger.Info("account registered", zap.String("username", username))
	}

	return &acct, nil
}

func (s *Service) Get(ctx context.Context, username string) (*Account, error) {
	username = identity.Normalize(username)

	acct, err := kv.GetJSON[Account](ctx, s.store, accountKey(username))
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}

	return acct, nil
}

// TouchActive stamps the account's last activity. Concurrent touches are
// last-write-wins, which is fine for a recency field.
func (s *Service) TouchActive(ctx context.Context, username string) error {
	acct, err := s.Get(ctx, username)
	if err != nil {
		return err
	}

	acct.LastActive = s.now().UTC()
	if err := kv.SetJSON(ctx, s.store, accountKey(acct.Username), acct, 0); err != nil {
		return fmt.Errorf("failed to update account activity: %w", err)
	}

	return nil
}

// Ban marks the account restricted and revokes its tokens. The gate checks
// standing before tokens, so the account is inert even if revocation fails
// here and is retried later.
func (s *Service) Ban(ctx context.Context, username, reason string) error {
	acct, err := s.Get(ctx, username)
	if err != nil {
		return err
	}

	bannedAt := s.now().UTC()
	acct.Banned = true
	acct.BanReason = reason
	acct.BannedAt = &bannedAt

	if err := kv.SetJSON(ctx, s.store, accountKey(acct.Username), acct, 0); err != nil {
		return fmt.Errorf("failed to ban account: %w", err)
	}

	if s.tokens != nil {
		if _, err := s.tokens.RevokeAll(ctx, acct.Username); err != nil {
			if s.logger != nil {
				s.logger.Warn("failed to revoke tokens of banned account",
					zap.String("username", acct.Username),
					zap.Error(err))
			}
		}
	}

	if s.logger != nil {
		s.logger.Info("account banned",
			zap.String("username", acct.Username),
			zap.String("reason", reason))
	}

	return nil
}

func (s *Service) Unban(ctx context.Context, username string) error {
	acct, err := s.Get(ctx, username)
	if err != nil {
		return err
	}

	acct.Banned = false
	acct.BanReason = ""
	acct.BannedAt = nil

	if err := kv.SetJSON(ctx, s.store, accountKey(acct.Username), acct, 0); err != nil {
		return fmt.Errorf("failed to unban account: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("account unbanned", zap.String("username", acct.Username))
	}

	return nil
}

// Delete removes the account and purges its tokens and password hash. Each
// step is idempotent, so rerunning after a partial failure completes the
// purge.
func (s *Service) Delete(ctx context.Context, username string) error {
	username = identity.Normalize(username)

	var firstErr error

	if s.tokens != nil {
		if _, err := s.tokens.RevokeAll(ctx, username); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.credentials != nil {
		if err := s.credentials.DeleteHash(ctx, username); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if _, err := s.store.Del(ctx, accountKey(username)); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := s.store.SRem(ctx, indexKey, username); err != nil && firstErr == nil {
		firstErr = err
	}

	if firstErr != nil {
		if s.logger != nil {
			s.logger.Error("account deletion incomplete",
				zap.String("username", username),
				zap.Error(firstErr))
		}
		return fmt.Errorf("account deletion incomplete: %w", firstErr)
	}

	if s.logger != nil {
		s.logger.Info("account deleted", zap.String("username", username))
	}

	return nil
}

func (s *Service) List(ctx context.Context) ([]string, error) {
	usernames, err := s.store.SMembers(ctx, indexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	sort.Strings(usernames)
	return usernames, nil
}
