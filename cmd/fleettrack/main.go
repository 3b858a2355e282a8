package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/openawp/fleettrack/internal/config"
	"github.com/openawp/fleettrack/internal/cycle"
	"github.com/openawp/fleettrack/internal/fleet"
	"github.com/openawp/fleettrack/internal/ingest"
	"github.com/openawp/fleettrack/internal/migration"
	"github.com/openawp/fleettrack/internal/modelsheet"
	"github.com/openawp/fleettrack/internal/observability"
	"github.com/openawp/fleettrack/internal/server"
	"github.com/openawp/fleettrack/internal/timeseries"
	"github.com/openawp/fleettrack/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		// Fleet domains
		fleet.Module,
		timeseries.Module,
		ingest.Module,
		cycle.Module,
		modelsheet.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
