package cycle

import "go.uber.org/fx"

var Module = fx.Module("cycle",
	fx.Provide(NewService),
)
