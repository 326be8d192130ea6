package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aulavirtual/lms-server-go/internal/bootstrap"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/database"
	"github.com/aulavirtual/lms-server-go/pkg/database/migrations"
	"github.com/aulavirtual/lms-server-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.New(logger.Options{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	db, err := database.Open(cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db, appLogger) }()

	if cfg.Database.Driver == config.DriverPostgres {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
			appLogger.Error("Failed to create uuid extension", slog.String("error", err.Error()))
			os.Exit(1)
		}
		appLogger.Info("UUID extension enabled")
	}

	appLogger.Info("Starting database migrations...")

	bootstrap.RegisterMigrations(cfg)
	if err := migrations.Run(db, appLogger); err != nil {
		appLogger.Error("Failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Println("\nApplied migrations:")
	for _, name := range migrations.Names() {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("All database tables created/updated successfully!")
}
