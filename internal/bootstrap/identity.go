package bootstrap

import (
	"gorm.io/gorm"

	"github.com/aulavirtual/lms-server-go/internal/identity"
	"github.com/aulavirtual/lms-server-go/internal/identity/gotrue"
	"github.com/aulavirtual/lms-server-go/internal/identity/local"
	"github.com/aulavirtual/lms-server-go/pkg/config"
)

// NewIdentityProvider returns the provider selected by LMS_IDENTITY_PROVIDER.
func NewIdentityProvider(cfg *config.Config, db *gorm.DB) identity.Provider {
	if cfg.Identity.Provider == config.IdentityGoTrue {
		return gotrue.New(cfg.Platform.URL, cfg.Platform.AnonKey, cfg.Platform.ServiceKey)
	}
	return local.New(db, local.Options{
		AccessSecret:  cfg.Identity.JWTSecret,
		RefreshSecret: cfg.Identity.JWTRefreshSecret,
		AccessTTL:     cfg.Identity.AccessTokenExpiry,
		RefreshTTL:    cfg.Identity.RefreshTokenExpiry,
	})
}
