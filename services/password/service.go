package password

import (
	"context"
	"errors"
	"fmt"

	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/internal/identity"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrHashingFailed      = errors.New("failed to hash password")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// dummyHash keeps the no-record path doing the same bcrypt work as the
// wrong-password path, so callers cannot distinguish the two by timing.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

const keyPrefix = "password:"

type Service struct {
	store  kv.Store
	config *config.Config
	logger *logging.Service
}

type PasswordService interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
	VerifyUser(ctx context.Context, username, password string) error
	SetHash(ctx context.Context, username, hash string) error
	GetHash(ctx context.Context, username string) (string, bool, error)
	DeleteHash(ctx context.Context, username string) error
}

func NewService(store kv.Store, cfg *config.Config, logger *logging.Service) *Service {
	if cfg.Auth.BcryptCost < bcrypt.MinCost || cfg.Auth.BcryptCost > bcrypt.MaxCost {
		cfg.Auth.BcryptCost = bcrypt.DefaultCost
	}

	return &Service{
		store:  store,
		config: cfg,
		logger: logger,
	}
}

func hashKey(username string) string {
	return keyPrefix + identity.Normalize(username)
}

func (s *Service) Hash(password string) (string, error) {
	if s.logger != nil {
		s.logger.Debug("generating password hash", zap.Int("bcrypt_cost", s.config.Auth.BcryptCost))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.Auth.BcryptCost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrHashingFailed
	}

	return string(hash), nil
}

func (s *Service) Verify(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// VerifyUser checks a password against the stored hash for username. An
// account without a password record (token-only) fails with the same generic
// error as a wrong password.
func (s *Service) VerifyUser(ctx context.Context, username, password string) error {
	hash, ok, err := s.GetHash(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		if s.logger != nil {
			s.logger.Debug("password verification for account without password record")
		}
		return ErrInvalidCredentials
	}

	if err := s.Verify(password, hash); err != nil {
		if s.logger != nil {
			s.logger.Warn("password verification failed",
				zap.String("username", identity.Normalize(username)))
		}
		return err
	}

	return nil
}

func (s *Service) SetHash(ctx context.Context, username, hash string) error {
	if err := s.store.Set(ctx, hashKey(username), hash, 0); err != nil {
		if s.logger != nil {
			s.logger.Error("failed to store password hash",
				zap.String("username", identity.Normalize(username)),
				zap.Error(err))
		}
		return fmt.Errorf("failed to store password hash: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("password hash stored",
			zap.String("username", identity.Normalize(username)))
	}

	return nil
}

func (s *Service) GetHash(ctx context.Context, username string) (string, bool, error) {
	hash, ok, err := s.store.Get(ctx, hashKey(username))
	if err != nil {
		return "", false, fmt.Errorf("failed to read password hash: %w", err)
	}
	return hash, ok, nil
}

func (s *Service) DeleteHash(ctx context.Context, username string) error {
	if _, err := s.store.Del(ctx, hashKey(username)); err != nil {
		return fmt.Errorf("failed to delete password hash: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("password hash deleted",
			zap.String("username", identity.Normalize(username)))
	}

	return nil
}
