package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/snowops-boq/internal/config"
	"github.com/nurpe/snowops-boq/internal/model"
)

// Models lists every persisted entity, in dependency order.
var Models = []interface{}{
	&model.Contract{},
	&model.ContractItem{},
	&model.Addendum{},
	&model.AddendumOperation{},
}

func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}
	if cfg.Environment == "development" {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.DSN)
	default:
		dialector = postgres.Open(cfg.DB.DSN)
	}

	database, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DB.Driver, err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DB.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	}
	if cfg.DB.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	}
	if cfg.DB.ConnMaxLifetime != "" {
		lifetime, err := time.ParseDuration(cfg.DB.ConnMaxLifetime)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
		}
		sqlDB.SetConnMaxLifetime(lifetime)
	}

	if err := Migrate(database, cfg.DB.Driver); err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")
	return database, nil
}

// Migrate brings the schema up to date. Postgres uses the hand written
// statements; sqlite, used for local runs and tests, relies on AutoMigrate.
func Migrate(database *gorm.DB, driver string) error {
	if driver == "sqlite" {
		return database.AutoMigrate(Models...)
	}
	return runMigrations(database)
}
