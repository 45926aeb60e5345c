package webhook

import (
	"github.com/smallbiznis/partnersync/internal/webhook/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhook.service",
	fx.Provide(service.New),
)
