package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/aulavirtual/lms-server-go/internal/bootstrap"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/database"
	"github.com/aulavirtual/lms-server-go/pkg/logger"
	"github.com/aulavirtual/lms-server-go/pkg/types"
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

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db, appLogger) }()

	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		value, _ := reader.ReadString('\n')
		return strings.TrimSpace(value)
	}

	fullName := prompt("Full Name: ")
	email := prompt("Email: ")
	password := prompt("Password (min 8 chars): ")

	service := profile.NewService(db, bootstrap.NewIdentityProvider(cfg, db), appLogger)
	created, err := service.CreateUser(ctx, profile.CreateUserInput{
		Email:    email,
		Password: password,
		FullName: fullName,
		Role:     string(types.RoleAdmin),
	})
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nAdministrator created successfully!")
	fmt.Printf("   ID: %s\n", created.ID)
	fmt.Printf("   Email: %s\n", created.Email)
	fmt.Printf("   Role: %s\n", created.Role)
}
