package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/attendhub/internal/config"
	"github.com/geocoder89/attendhub/internal/domain/user"
	"github.com/geocoder89/attendhub/internal/security"
)

// AdminStore is the slice of a users repository the seeder needs.
type AdminStore interface {
	GetByUserName(ctx context.Context, userName string) (user.User, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
	Update(ctx context.Context, id string, p user.Patch) (user.User, error)
}

// EnsureAdminUser creates the configured admin account, or promotes an
// existing account with that username. Without ADMIN_USERNAME and
// ADMIN_PASSWORD it does nothing.
func EnsureAdminUser(ctx context.Context, users AdminStore, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminUserName == "" || cfg.AdminPassword == "" {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}

	existing, err := users.GetByUserName(ctx, cfg.AdminUserName)
	switch {
	case err == nil:
		if existing.Role == user.RoleAdmin {
			return nil
		}
		role := user.RoleAdmin
		if _, err := users.Update(ctx, existing.ID, user.Patch{Role: &role}); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		log.InfoContext(ctx, "existing user promoted to admin", "user_id", existing.ID)
		return nil

	case !errors.Is(err, user.ErrNotFound):
		return fmt.Errorf("look up admin: %w", err)
	}

	hash, err := security.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	email := cfg.AdminEmail
	if email == "" {
		email = cfg.AdminUserName + "@localhost"
	}

	u, err := users.Create(ctx, user.NewUser{
		UserName:     cfg.AdminUserName,
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	})
	if err != nil {
		// another replica won the race
		if errors.Is(err, user.ErrUserNameTaken) {
			return nil
		}
		return fmt.Errorf("create admin: %w", err)
	}

	log.InfoContext(ctx, "admin user created", "user_id", u.ID)
	return nil
}
