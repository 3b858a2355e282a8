package modelsheet

import "go.uber.org/fx"

var Module = fx.Module("modelsheet",
	fx.Provide(NewService),
)
