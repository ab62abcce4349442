// Package sessionkit is the session and rate-limit control plane for the
// platform: bearer token issuance/validation/refresh with grace-period
// rollover, atomic distributed rate limiting, and room presence tracking,
// all backed by a shared key-value store.
package sessionkit

import (
	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/account"
	"github.com/chorushq/sessionkit/services/gate"
	"github.com/chorushq/sessionkit/services/logging"
	"github.com/chorushq/sessionkit/services/password"
	"github.com/chorushq/sessionkit/services/presence"
	"github.com/chorushq/sessionkit/services/ratelimit"
	"github.com/chorushq/sessionkit/services/token"
	"go.uber.org/fx"
)

// New assembles every control-plane service as an fx option set. Pass a nil
// config to load from the environment.
func New(cfg *config.Config) fx.Option {
	return fx.Options(
		config.NewProvider(cfg),
		logging.Module,
		kv.Module,
		token.Options,
		password.Options,
		ratelimit.Options,
		presence.Options,
		account.Options,
		gate.Options,
	)
}

// Options wires the control plane from environment configuration.
var Options = New(nil)
