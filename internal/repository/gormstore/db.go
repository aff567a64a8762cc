// Package gormstore persists vehicles and stops through gorm, on SQLite for single-node
// deployments and tests or Postgres in production.
package gormstore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kigaligo/internal/config"
)

// memoryDSN keeps a private in-memory database alive on a single pooled
// connection.
const memoryDSN = ":memory:"

// Open connects to the database named by cfg and migrates the schema when
// cfg.AutoMigrate is set.
func Open(cfg config.StoreConfig, log zerolog.Logger) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Driver {
	case "postgres":
		db, err = openPostgres(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		log.Info().Msg("Connected to Postgres vehicle store")
	case "sqlite":
		db, err = OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		if cfg.DSN == "" {
			log.Info().Msg("Using in-memory SQLite vehicle store")
		} else {
			log.Info().Str("path", cfg.DSN).Msg("Using SQLite vehicle store")
		}
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	if cfg.Driver == "postgres" && cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if cfg.AutoMigrate {
		log.Info().Msg("Migrating schema")
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
}

// OpenSQLite opens path, or a private in-memory database when path is empty.
func OpenSQLite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if path == "" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// Every new connection to :memory: would see an empty database.
		sqlDB.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	if path == "" {
		pragmas[0] = "PRAGMA journal_mode = MEMORY;"
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}
	return db, nil
}

// Migrate creates or updates the vehicles and stops tables and their indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&vehicleRecord{}); err != nil {
		return fmt.Errorf("failed to migrate vehicles table: %w", err)
	}
	if err := db.AutoMigrate(&stopRecord{}); err != nil {
		return fmt.Errorf("failed to migrate stops table: %w", err)
	}
	return nil
}
