package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

// EnsureDefaultAdmin creates the configured administrator, or restores its
// role and active flag when the profile already exists.
func EnsureDefaultAdmin(ctx context.Context, db *gorm.DB, provider identity.Provider, cfg config.AdminConfig, logger *slog.Logger) error {
	if cfg.Email == "" {
		return nil
	}

	existing, err := profile.GetByEmail(db.WithContext(ctx), cfg.Email)
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		created, createErr := profile.NewService(db, provider, logger).CreateUser(ctx, profile.CreateUserInput{
			Email:    cfg.Email,
			Password: cfg.Password,
			FullName: cfg.FullName,
			Role:     string(types.RoleAdmin),
		})
		if errors.Is(createErr, profile.ErrEmailTaken) {
			logger.Warn("default admin skipped - identity account exists without a profile", slog.String("email", cfg.Email))
			return nil
		}
		if createErr != nil {
			if isUndefinedTableError(createErr) {
				logger.Warn("default admin skipped - profiles table missing", slog.String("email", cfg.Email))
				return nil
			}
			return fmt.Errorf("create default admin: %w", createErr)
		}

		logger.Info("default admin created", slog.String("email", cfg.Email), slog.String("id", created.ID.String()))
		return nil

	case err != nil:
		if isUndefinedTableError(err) {
			logger.Warn("default admin skipped - profiles table missing", slog.String("email", cfg.Email))
			return nil
		}
		return fmt.Errorf("get default admin: %w", err)
	}

	updates := map[string]interface{}{}
	if existing.Role != types.RoleAdmin {
		updates["role"] = types.RoleAdmin
	}
	if !existing.Active {
		updates["is_active"] = true
	}

	if len(updates) == 0 {
		logger.Info("default admin already up to date", slog.String("email", cfg.Email))
		return nil
	}

	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("update default admin: %w", err)
	}

	logger.Info("default admin synchronized", slog.String("email", cfg.Email))
	return nil
}

func isUndefinedTableError(err error) bool {
	if err == nil {
		return false
	}

	message := err.Error()
	return strings.Contains(message, "relation \"user_profiles\" does not exist") ||
		strings.Contains(message, "no such table: user_profiles")
}
