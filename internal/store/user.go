package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userTableName = "causeconnect.users"

var userColumns = utils.StructTagValues(types.User{})

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) User(ctx context.Context, userID string) (*types.User, error) {
	return r.userWhere(ctx, sq.Eq{"id": userID})
}

func (r *UserRepository) UserByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.userWhere(ctx, sq.Eq{"email": normalizeEmail(email)})
}

func (r *UserRepository) UserByRefreshToken(ctx context.Context, token string) (*types.User, error) {
	if token == "" {
		return nil, types.ErrUserNotFound
	}
	return r.userWhere(ctx, sq.Eq{"refresh_token": token})
}

func (r *UserRepository) userWhere(ctx context.Context, pred sq.Eq) (*types.User, error) {
	query, args, err := psql().
		Select(userColumns...).
		From(userTableName).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user query: %w", err)
	}

	var user types.User
	err = pgxscan.Get(ctx, r.pool, &user, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &user, nil
}

func (r *UserRepository) Users(ctx context.Context, role types.Role) ([]*types.User, error) {
	builder := psql().
		Select(userColumns...).
		From(userTableName).
		OrderBy("created_at DESC")
	if role != "" {
		builder = builder.Where(sq.Eq{"role": role})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate users query: %w", err)
	}

	users := make([]*types.User, 0)
	if err := pgxscan.Select(ctx, r.pool, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}

	return users, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user *types.User) error {
	now := time.Now()
	if user.ID == "" {
		user.ID = utils.NanoID()
	}
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = now
	user.UpdatedAt = now

	query, args, err := psql().
		Insert(userTableName).
		SetMap(utils.StructToMap(user)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create user query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return types.ConflictError("a user with email %s already exists", user.Email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// UpdateProfile writes name, role and verified. Credentials have their own
// conditional writers below.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *types.User) error {
	user.UpdatedAt = time.Now()

	return execBuilder(ctx, r.pool, psql().
		Update(userTableName).
		SetMap(map[string]any{
			"name":       user.Name,
			"role":       user.Role,
			"verified":   user.Verified,
			"updated_at": user.UpdatedAt,
		}).
		Where(sq.Eq{"id": user.ID}), "update user profile")
}

func (r *UserRepository) SetRole(ctx context.Context, userID string, role types.Role) error {
	query, args, err := psql().
		Update(userTableName).
		Set("role", role).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate set role query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrUserNotFound
	}

	return nil
}

func (r *UserRepository) SetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	return execBuilder(ctx, r.pool, psql().
		Update(userTableName).
		Set("otp_code", code).
		Set("otp_expires_at", expiresAt).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": userID}), "set otp")
}

// ClearOTP removes the code only if it is still the one given, so a
// concurrent re-issue is never wiped out. It reports whether a row changed.
func (r *UserRepository) ClearOTP(ctx context.Context, userID, code string) (bool, error) {
	query, args, err := psql().
		Update(userTableName).
		Set("otp_code", nil).
		Set("otp_expires_at", nil).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": userID, "otp_code": code}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate clear otp query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to clear otp: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) SetRefreshToken(ctx context.Context, userID, token string) error {
	return execBuilder(ctx, r.pool, psql().
		Update(userTableName).
		Set("refresh_token", nullable(token)).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": userID}), "set refresh token")
}

// RotateRefreshToken swaps current for next only while current is still
// the stored value.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID, current, next string) (bool, error) {
	query, args, err := psql().
		Update(userTableName).
		Set("refresh_token", next).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": userID, "refresh_token": current}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to generate rotate refresh token query: %w", err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	return execBuilder(ctx, r.pool, psql().
		Update(userTableName).
		Set("refresh_token", nil).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"refresh_token": token}), "clear refresh token")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
