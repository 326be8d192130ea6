package bootstrap

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/assignment"
	"github.com/aulavirtual/lms-server-go/internal/features/course"
	"github.com/aulavirtual/lms-server-go/internal/features/enrollment"
	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/features/progress"
	"github.com/aulavirtual/lms-server-go/internal/features/video"
	"github.com/aulavirtual/lms-server-go/internal/identity/local"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/database/migrations"
)

// Models lists every table owned by the server in dependency order.
func Models(includeLocalAccounts bool) []interface{} {
	models := []interface{}{
		&profile.Profile{},
		&course.Course{},
		&assignment.TeacherAssignment{},
		&enrollment.Enrollment{},
		&video.Video{},
		&progress.Progress{},
	}
	if includeLocalAccounts {
		models = append(models, &local.Account{})
	}
	return models
}

// RegisterMigrations adds the schema migration to the registry.
func RegisterMigrations(cfg *config.Config) {
	models := Models(cfg.Identity.Provider == config.IdentityLocal)
	migrations.Register("schema", func(db *gorm.DB) error {
		return db.AutoMigrate(models...)
	})
}

// ApplyDatabaseMigrations runs database migrations when enabled via configuration.
func ApplyDatabaseMigrations(db *gorm.DB, cfg *config.Config, logger *slog.Logger) error {
	if !cfg.Database.RunMigrations {
		logger.Info("database migrations skipped", slog.String("env_var", "LMS_DB_RUN_MIGRATIONS=false"))
		return nil
	}

	RegisterMigrations(cfg)
	if err := migrations.Run(db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	logger.Info("database migrations applied successfully")
	return nil
}
