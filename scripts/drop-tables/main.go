package main

import (
	"bufio"
	"fmt"
	"log"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/aulavirtual/lms-server-go/internal/bootstrap"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/database"
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

	fmt.Println("\nWARNING: This will DROP ALL TABLES in the database!")
	fmt.Println("   This action CANNOT be undone.")
	fmt.Print("\nType 'DROP ALL TABLES' to confirm: ")

	reader := bufio.NewReader(os.Stdin)
	confirmation, _ := reader.ReadString('\n')
	if strings.TrimSpace(confirmation) != "DROP ALL TABLES" {
		fmt.Println("\nOperation cancelled. Database unchanged.")
		os.Exit(0)
	}

	// Dependents first.
	models := bootstrap.Models(true)
	slices.Reverse(models)

	droppedCount := 0
	for _, model := range models {
		if err := db.Migrator().DropTable(model); err != nil {
			appLogger.Warn("Failed to drop table", slog.String("model", fmt.Sprintf("%T", model)), slog.String("error", err.Error()))
			continue
		}
		appLogger.Info("Dropped table", slog.String("model", fmt.Sprintf("%T", model)))
		droppedCount++
	}

	fmt.Printf("\nSuccessfully dropped %d tables!\n", droppedCount)
	fmt.Println("   You can now run the migrate script to recreate them.")
}
