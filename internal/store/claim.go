package store

import (
	"context"
	"fmt"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const claimTableName = "causeconnect.claims"

var claimColumns = utils.StructTagValues(types.Claim{})

type ClaimRepository struct {
	pool *pgxpool.Pool
}

func NewClaimRepository(pool *pgxpool.Pool) *ClaimRepository {
	return &ClaimRepository{pool: pool}
}

func (r *ClaimRepository) Claim(ctx context.Context, claimID string) (*types.Claim, error) {
	query, args, err := psql().
		Select(claimColumns...).
		From(claimTableName).
		Where(sq.Eq{"id": claimID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate claim query: %w", err)
	}

	var claim = new(types.Claim)
	err = pgxscan.Get(ctx, r.pool, claim, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to fetch claim %s: %w", claimID, err)
	}

	return claim, nil
}

func claimPredicate(filter types.ClaimFilter) sq.And {
	pred := sq.And{}
	if filter.Status != "" {
		pred = append(pred, sq.Eq{"status": filter.Status})
	}
	if filter.CauseID != "" {
		pred = append(pred, sq.Eq{"cause_id": filter.CauseID})
	}
	if filter.UserID != "" {
		pred = append(pred, sq.Eq{"user_id": filter.UserID})
	}
	if filter.From != nil {
		pred = append(pred, sq.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		pred = append(pred, sq.Lt{"created_at": *filter.To})
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		pred = append(pred, sq.Or{
			sq.ILike{"full_name": like},
			sq.ILike{"email": like},
			sq.ILike{"cause_title": like},
			sq.ILike{"tracking_number": like},
		})
	}
	return pred
}

// Claims returns one page of claims matching filter and the total match count.
func (r *ClaimRepository) Claims(ctx context.Context, filter types.ClaimFilter) ([]*types.Claim, int, error) {
	filter.Normalize()
	pred := claimPredicate(filter)

	total, err := count(ctx, r.pool, psql().Select("COUNT(*)").From(claimTableName).Where(pred))
	if err != nil {
		return nil, 0, err
	}

	query, args, err := psql().
		Select(claimColumns...).
		From(claimTableName).
		Where(pred).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(offset(filter.Page, filter.Limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate claims query: %w", err)
	}

	claims := make([]*types.Claim, 0)
	if err := pgxscan.Select(ctx, r.pool, &claims, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch claims: %w", err)
	}

	return claims, total, nil
}

func (r *ClaimRepository) ClaimsByUser(ctx context.Context, userID string) ([]*types.Claim, error) {
	query, args, err := psql().
		Select(claimColumns...).
		From(claimTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user claims query: %w", err)
	}

	claims := make([]*types.Claim, 0)
	if err := pgxscan.Select(ctx, r.pool, &claims, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch claims for user %s: %w", userID, err)
	}

	return claims, nil
}

// CreateClaimForCause locks the cause, lets build stamp it and produce the
// claim, then writes both. The cause and its first claim land together or
// not at all.
func (r *ClaimRepository) CreateClaimForCause(ctx context.Context, causeID string, build func(*types.Cause) (*types.Claim, error)) (*types.Claim, error) {
	var out *types.Claim
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cause, err := lockCause(ctx, tx, causeID)
		if err != nil {
			return err
		}

		claim, err := build(cause)
		if err != nil {
			return err
		}

		if err := insertClaim(ctx, tx, claim); err != nil {
			return err
		}

		if err := writeCause(ctx, tx, cause); err != nil {
			return err
		}

		out = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func insertClaim(ctx context.Context, tx pgx.Tx, claim *types.Claim) error {
	if claim.ID == "" {
		claim.ID = utils.NanoID()
	}

	query, args, err := psql().
		Insert(claimTableName).
		SetMap(utils.StructToMap(claim)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert claim query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return types.ConflictError("you have already claimed this cause")
		}
		return fmt.Errorf("failed to insert claim: %w", err)
	}

	return nil
}

// MutateClaim locks the claim so that status and its history move together.
func (r *ClaimRepository) MutateClaim(ctx context.Context, claimID string, fn func(*types.Claim) error) (*types.Claim, error) {
	var out *types.Claim
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var claim = new(types.Claim)
		err := getForUpdate(ctx, tx, claim, psql().
			Select(claimColumns...).
			From(claimTableName).
			Where(sq.Eq{"id": claimID}))
		if err != nil {
			if pgxscan.NotFound(err) {
				return types.ErrClaimNotFound
			}
			return fmt.Errorf("failed to lock claim %s: %w", claimID, err)
		}

		if err := fn(claim); err != nil {
			return err
		}

		claim.UpdatedAt = time.Now()
		if err := execBuilder(ctx, tx, psql().
			Update(claimTableName).
			SetMap(utils.StructToMapOmit(claim, "id", "created_at")).
			Where(sq.Eq{"id": claimID}), "update claim"); err != nil {
			return err
		}

		out = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// MutateClaimWithCause locks the claim's cause and then the claim, the same
// order claim creation takes them, and writes both back.
func (r *ClaimRepository) MutateClaimWithCause(ctx context.Context, claimID string, fn func(*types.Claim, *types.Cause) error) (*types.Claim, error) {
	current, err := r.Claim(ctx, claimID)
	if err != nil {
		return nil, err
	}

	var out *types.Claim
	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cause, err := lockCause(ctx, tx, current.CauseID)
		if err != nil {
			return err
		}

		var claim = new(types.Claim)
		err = getForUpdate(ctx, tx, claim, psql().
			Select(claimColumns...).
			From(claimTableName).
			Where(sq.Eq{"id": claimID}))
		if err != nil {
			if pgxscan.NotFound(err) {
				return types.ErrClaimNotFound
			}
			return fmt.Errorf("failed to lock claim %s: %w", claimID, err)
		}

		if err := fn(claim, cause); err != nil {
			return err
		}

		claim.UpdatedAt = time.Now()
		if err := execBuilder(ctx, tx, psql().
			Update(claimTableName).
			SetMap(utils.StructToMapOmit(claim, "id", "created_at")).
			Where(sq.Eq{"id": claimID}), "update claim"); err != nil {
			return err
		}

		if err := writeCause(ctx, tx, cause); err != nil {
			return err
		}

		out = claim
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
