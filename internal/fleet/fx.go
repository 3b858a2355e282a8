package fleet

import (
	"go.uber.org/fx"

	"github.com/openawp/fleettrack/internal/fleet/repository"
	"github.com/openawp/fleettrack/internal/fleet/resolver"
)

var Module = fx.Module("fleet",
	fx.Provide(resolver.New),
	fx.Provide(repository.New),
)
