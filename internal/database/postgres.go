package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/angadhsingh1/ETL-Pipeline/internal/config"
)

// Open connects to the destination database.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	return OpenDialector(postgres.Open(cfg.DSN()), cfg.LogLevel)
}

// OpenDialector opens gorm on any dialector with the project's naming and
// logging settings.
func OpenDialector(dialector gorm.Dialector, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Release closes db and logs, rather than returns, any failure. It is meant
// for deferred cleanup.
func Release(db *gorm.DB, log *zap.Logger) {
	if err := Close(db); err != nil {
		log.Warn("Failed to close database", zap.Error(err))
	}
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
