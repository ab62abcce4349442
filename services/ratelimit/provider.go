package ratelimit

import (
	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"go.uber.org/fx"
)

func ProvideRateLimitService(store kv.Store, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(store, cfg, logger)
}

var Options = fx.Options(
	fx.Provide(ProvideRateLimitService),
)
