package main

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/section-queue/internal/config"
	"github.com/iliyamo/section-queue/internal/handler"
	"github.com/iliyamo/section-queue/internal/model"
	"github.com/iliyamo/section-queue/internal/repository"
)

// seedAdmin creates the ADMIN account named by ADMIN_EMAIL when it does not
// exist yet, so a fresh install can sign in and create staff.
func seedAdmin(ctx context.Context, users handler.UserStore, cfg config.Config, log *zap.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	_, err := users.GetByEmail(ctx, cfg.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	id, err := users.Create(ctx, cfg.AdminEmail, cfg.AdminPassword, model.RoleAdmin, cfg.BcryptCost)
	if errors.Is(err, repository.ErrEmailExists) {
		return nil
	}
	if err != nil {
		return err
	}
	log.Info("admin account seeded", zap.Uint64("user_id", id), zap.String("email", cfg.AdminEmail))
	return nil
}
