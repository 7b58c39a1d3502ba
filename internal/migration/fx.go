package migration

import (
	"github.com/courtsidehq/courtside/internal/config"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are dev/test conveniences; schema parity with
			// the SQL files is enough there.
			return conn.AutoMigrate(&syncdomain.SyncRecord{}, &syncdomain.AppliedEvent{})
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
