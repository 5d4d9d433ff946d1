package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"scheduling-server/config"
	"scheduling-server/logger"
	"scheduling-server/models"
)

// Initialize opens the connection pool. Every multi-table mutation takes a
// single transaction from this pool.
func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DB_URL is required. Set DB_URL to a valid Postgres URL")
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger: logger.NewGormLogger(cfg.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL database: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log := logger.WithComponent("database")
	log.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("Connected to database")

	return db, nil
}

// Migrate creates or updates the scheduling tables. Parents are listed before
// the tables that reference them.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.Groupe{},
		&models.Worker{},
		&models.Client{},
		&models.Service{},
		&models.Appointment{},
		&models.AppointmentWorker{},
		&models.AppointmentService{},
		&models.Report{},
		&models.ReportPhoto{},
		&models.PushSubscription{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log := logger.WithComponent("database")
	log.Info().Msg("Database migrations completed successfully")
	return nil
}

// Close releases the pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
