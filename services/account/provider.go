package account

import (
	"github.com/chorushq/sessionkit/config"
	"github.com/chorushq/sessionkit/kv"
	"github.com/chorushq/sessionkit/services/logging"
	"github.com/chorushq/sessionkit/services/password"
	"github.com/chorushq/sessionkit/services/token"
	"go.uber.org/fx"
)

func ProvideAccountService(store kv.Store, cfg *config.Config, logger *logging.Service, tokens *token.Service, credentials *password.Service) *Service {
	return NewService(store, cfg, logger, tokens, credentials)
}

var Options = fx.Options(
	fx.Provide(ProvideAccountService),
)
