package testutils

import (
	"time"

	"github.com/chorushq/sessionkit/config"
)

// GetTestConfig returns a config tuned for fast tests: short lifetimes and
// the cheapest acceptable bcrypt cost.
func GetTestConfig() *config.Config {
	return &config.Config{
		Log: config.LogConfig{
			Level:  "error",
			Format: "json",
			Output: "stdout",
		},
		Token: config.TokenConfig{
			SessionLifetime: time.Hour,
			GraceWindow:     5 * time.Minute,
			TokenLength:     16,
			ScanPageSize:    10,
			ScanMaxPages:    50,
		},
		Auth: config.AuthConfig{
			BcryptCost:        4,
			MinUsernameLength: 3,
			MaxUsernameLength: 32,
			BlockedUsernames:  []string{"admin", "root", "system"},
		},
		RateLimit: config.RateLimitConfig{
			BlockTTL: 24 * time.Hour,
		},
		Presence: config.PresenceConfig{
			MaxAge: 5 * time.Minute,
		},
	}
}
