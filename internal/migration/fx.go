package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/openawp/fleettrack/internal/config"
	"github.com/openawp/fleettrack/internal/fleet/domain"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Versioned SQL migrations are written for PostgreSQL. Other
		// dialects (sqlite for local runs) get the schema from the models.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&domain.Snapshot{},
				&domain.Venue{},
				&domain.Model{},
				&domain.AccessPoint{},
				&domain.Machine{},
				&domain.MachineDaily{},
				&domain.CycleConfig{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
