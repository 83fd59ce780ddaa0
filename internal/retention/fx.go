package retention

import "go.uber.org/fx"

var Module = fx.Module("retention",
	fx.Provide(NewService),
)
