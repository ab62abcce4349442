package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Log       LogConfig       `envPrefix:"SESSIONKIT_LOG_"`
	Store     StoreConfig     `envPrefix:"SESSIONKIT_STORE_"`
	Token     TokenConfig     `envPrefix:"SESSIONKIT_TOKEN_"`
	Auth      AuthConfig      `envPrefix:"SESSIONKIT_AUTH_"`
	RateLimit RateLimitConfig `envPrefix:"SESSIONKIT_RATELIMIT_"`
	Presence  PresenceConfig  `envPrefix:"SESSIONKIT_PRESENCE_"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type StoreConfig struct {
	Addr         string        `env:"ADDR" envDefault:"localhost:6379"`
	Password     string        `env:"PASSWORD" envDefault:""`
	DB           int           `env:"DB" envDefault:"0"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
}

type TokenConfig struct {
	SessionLifetime time.Duration `env:"SESSION_LIFETIME" envDefault:"2160h"`
	GraceWindow     time.Duration `env:"GRACE_WINDOW" envDefault:"5m"`
	TokenLength     int           `env:"TOKEN_LENGTH" envDefault:"16"`
	ScanPageSize    int64         `env:"SCAN_PAGE_SIZE" envDefault:"100"`
	ScanMaxPages    int           `env:"SCAN_MAX_PAGES" envDefault:"100"`
}

type AuthConfig struct {
	BcryptCost        int      `env:"BCRYPT_COST" envDefault:"12"`
	MinUsernameLength int      `env:"MIN_USERNAME_LENGTH" envDefault:"3"`
	MaxUsernameLength int      `env:"MAX_USERNAME_LENGTH" envDefault:"32"`
	BlockedUsernames  []string `env:"BLOCKED_USERNAMES" envSeparator:"," envDefault:"admin,root,system,moderator"`
}

type RateLimitConfig struct {
	BlockTTL time.Duration `env:"BLOCK_TTL" envDefault:"24h"`
}

type PresenceConfig struct {
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"5m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}

func (c *Config) Validate() error {
	if err := validateTokenConfig(&c.Token); err != nil {
		return err
	}
	if err := validateAuthConfig(&c.Auth); err != nil {
		return err
	}
	return nil
}

func validateTokenConfig(cfg *TokenConfig) error {
	if cfg.TokenLength < 16 {
		return fmt.Errorf("token length must be at least 16 bytes, got %d", cfg.TokenLength)
	}
	if cfg.TokenLength > 128 {
		return fmt.Errorf("token length cannot exceed 128 bytes, got %d", cfg.TokenLength)
	}
	if cfg.SessionLifetime <= 0 {
		return fmt.Errorf("session lifetime must be positive, got %s", cfg.SessionLifetime)
	}
	if cfg.GraceWindow <= 0 {
		return fmt.Errorf("grace window must be positive, got %s", cfg.GraceWindow)
	}
	if cfg.GraceWindow >= cfg.SessionLifetime {
		return fmt.Errorf("grace window must be shorter than the session lifetime")
	}
	if cfg.ScanPageSize <= 0 || cfg.ScanMaxPages <= 0 {
		return fmt.Errorf("scan page size and max pages must be positive")
	}
	return nil
}

func validateAuthConfig(cfg *AuthConfig) error {
	if cfg.MinUsernameLength < 1 {
		return fmt.Errorf("minimum username length must be at least 1, got %d", cfg.MinUsernameLength)
	}
	if cfg.MaxUsernameLength < cfg.MinUsernameLength {
		return fmt.Errorf("maximum username length cannot be below the minimum")
	}
	return nil
}
