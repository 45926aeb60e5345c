package eventprocessor

import (
	"github.com/smallbiznis/partnersync/internal/config"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/mapping"
	"github.com/smallbiznis/partnersync/internal/eventprocessor/service"
	"go.uber.org/fx"
)

var Module = fx.Module("eventprocessor.service",
	fx.Provide(config.ProvideEventMapping),
	fx.Provide(mapping.New),
	fx.Provide(service.New),
	fx.Provide(service.NewRunner),
)
