package database

import (
	"database/sql"
	"fmt"
	"time"

	"donation_match_backend/internal/config"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogLevel maps the application log level onto GORM's coarser levels.
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent", "fatal", "panic":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn", "warning":
		return gormlogger.Warn
	case "info", "debug": // GORM logs every statement at Info
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// NewGORMLogger routes GORM's statement logging through zap.
func NewGORMLogger(cfg *config.Config, logger *zap.Logger) gormlogger.Interface {
	return gormlogger.New(
		zap.NewStdLog(logger.Named("gorm")),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true, // a missing profile is an expected outcome
			Colorful:                  cfg.GinMode != "release",
		},
	)
}

// NewGORM opens the Postgres connection pool through lib/pq and wraps it in GORM.
func NewGORM(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err = sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:      NewGORMLogger(cfg, logger),
		PrepareStmt: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Successfully connected to the database",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
	)
	return db, nil
}

// CloseGORMDB closes the GORM database connection.
func CloseGORMDB(db *gorm.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Error getting underlying SQL DB for closing", zap.Error(err))
		return
	}
	logger.Info("Closing database connection...")
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
		return
	}
	logger.Info("Database connection closed.")
}
