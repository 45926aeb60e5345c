package credential

import (
	"github.com/smallbiznis/partnersync/internal/credential/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credential.service",
	fx.Provide(service.ProvideVault),
	fx.Provide(service.NewService),
)
