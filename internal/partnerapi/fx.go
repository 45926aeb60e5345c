package partnerapi

import "go.uber.org/fx"

var Module = fx.Module("partnerapi.client",
	fx.Provide(New),
)
