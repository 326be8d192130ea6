package bootstrap

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulavirtual/lms-server-go/internal/features/profile"
	"github.com/aulavirtual/lms-server-go/internal/identity/identitytest"
	"github.com/aulavirtual/lms-server-go/internal/testutil"
	"github.com/aulavirtual/lms-server-go/pkg/config"
	"github.com/aulavirtual/lms-server-go/pkg/types"
)

func TestEnsureDefaultAdmin(t *testing.T) {
	db := testutil.NewDB(t, Models(true)...)
	fake := identitytest.New()
	cfg := config.AdminConfig{Email: "admin@example.com", Password: "S3guro!2026", FullName: "Admin"}
	ctx := context.Background()

	require.NoError(t, EnsureDefaultAdmin(ctx, db, fake, cfg, testutil.Logger()))
	admin, err := profile.GetByEmail(db, cfg.Email)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)
	assert.True(t, fake.HasAccount(cfg.Email))

	_, err = profile.SetActive(db, admin.ID, false)
	require.NoError(t, err)
	require.NoError(t, db.Model(&admin).Update("role", types.RoleStudent).Error)

	require.NoError(t, EnsureDefaultAdmin(ctx, db, fake, cfg, testutil.Logger()))
	admin, err = profile.GetByEmail(db, cfg.Email)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)
}

func TestEnsureDefaultAdminSkipsGhostAccount(t *testing.T) {
	db := testutil.NewDB(t, Models(false)...)
	fake := identitytest.New()
	fake.AddAccount(uuid.New(), "admin@example.com", "S3guro!2026")

	cfg := config.AdminConfig{Email: "admin@example.com", Password: "S3guro!2026", FullName: "Admin"}
	require.NoError(t, EnsureDefaultAdmin(context.Background(), db, fake, cfg, testutil.Logger()))

	_, err := profile.GetByEmail(db, cfg.Email)
	assert.ErrorIs(t, err, profile.ErrProfileNotFound)
	assert.Empty(t, fake.Deleted)
}

func TestEnsureDefaultAdminDisabled(t *testing.T) {
	assert.NoError(t, EnsureDefaultAdmin(context.Background(), nil, nil, config.AdminConfig{}, testutil.Logger()))
}
