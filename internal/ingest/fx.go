package ingest

import (
	"go.uber.org/fx"

	"github.com/openawp/fleettrack/internal/ingest/service"
)

var Module = fx.Module("ingest.service",
	fx.Provide(service.New),
)
