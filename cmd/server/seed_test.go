package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/repository"
)

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()
	users := repository.NewMemoryUserRepo()
	cfg := config.Config{AdminEmail: "Admin@Example.com", AdminPassword: "changeme123", BcryptCost: 4}

	require.NoError(t, seedAdmin(ctx, users, cfg, zap.NewNop()))
	u, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)

	// A second start leaves the existing account alone.
	require.NoError(t, seedAdmin(ctx, users, cfg, zap.NewNop()))
	again, err := users.GetByEmail(ctx, "admin@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
}

func TestSeedAdminSkippedWithoutCredentials(t *testing.T) {
	users := repository.NewMemoryUserRepo()
	require.NoError(t, seedAdmin(context.Background(), users, config.Config{}, zap.NewNop()))
	_, err := users.GetByEmail(context.Background(), "")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
