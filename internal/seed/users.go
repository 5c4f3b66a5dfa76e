package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"
)

// UserRepository is the subset of store.UserRepository the seeder writes through.
type UserRepository interface {
	UserByEmail(ctx context.Context, email string) (*types.User, error)
	CreateUser(ctx context.Context, user *types.User) error
	SetRole(ctx context.Context, userID string, role types.Role) error
}

// SeedAdmin makes sure a verified admin with the given email exists. An
// existing user with that email is promoted rather than duplicated.
func SeedAdmin(ctx context.Context, repo UserRepository, email string) (*types.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("admin email is required")
	}

	existing, err := repo.UserByEmail(ctx, email)
	if err == nil {
		if existing.Role != types.RoleAdmin {
			if err := repo.SetRole(ctx, existing.ID, types.RoleAdmin); err != nil {
				return nil, fmt.Errorf("failed to promote %s: %w", email, err)
			}
			existing.Role = types.RoleAdmin
		}
		return existing, nil
	}
	if !errors.Is(err, types.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to fetch admin %s: %w", email, err)
	}

	admin := &types.User{
		Name:     utils.StringPtr("CauseConnect Admin"),
		Email:    email,
		Role:     types.RoleAdmin,
		Verified: true,
	}
	if err := repo.CreateUser(ctx, admin); err != nil {
		return nil, fmt.Errorf("failed to create admin %s: %w", email, err)
	}

	return admin, nil
}
