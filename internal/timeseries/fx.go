package timeseries

import "go.uber.org/fx"

var Module = fx.Module("timeseries",
	fx.Provide(New),
)
