package gate

import (
	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/services/account"
	"github.com/chorushq/sessionkit/services/logging"
	"github.com/chorushq/sessionkit/services/ratelimit"
	"github.com/chorushq/sessionkit/services/token"
	"go.uber.org/fx"
)

func ProvideGateService(cfg *config.Config, logger *logging.Service, tokens *token.Service, accounts *account.Service, limiter *ratelimit.Service) *Service {
	return NewService(cfg, logger, tokens, accounts, limiter)
}

var Options = fx.Options(
	fx.Provide(ProvideGateService),
)
