package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"causeconnect/internal/utils"
	"causeconnect/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const causeTableName = "causeconnect.causes"

var causeColumns = utils.StructTagValues(types.Cause{})

type CauseRepository struct {
	pool *pgxpool.Pool
}

func NewCauseRepository(pool *pgxpool.Pool) *CauseRepository {
	return &CauseRepository{pool: pool}
}

func (r *CauseRepository) Cause(ctx context.Context, causeID string) (*types.Cause, error) {
	return causeByID(ctx, r.pool, causeID)
}

func causeByID(ctx context.Context, q querier, causeID string) (*types.Cause, error) {
	query, args, err := psql().
		Select(causeColumns...).
		From(causeTableName).
		Where(sq.Eq{"id": causeID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate cause query: %w", err)
	}

	var cause = new(types.Cause)
	err = pgxscan.Get(ctx, q, cause, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCauseNotFound
		}
		return nil, fmt.Errorf("failed to fetch cause %s: %w", causeID, err)
	}

	return cause, nil
}

func (r *CauseRepository) Causes(ctx context.Context, filter types.CauseFilter) ([]*types.Cause, error) {
	builder := psql().
		Select(causeColumns...).
		From(causeTableName).
		OrderBy("created_at DESC")

	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.OnlineOnly {
		builder = builder.Where(sq.Eq{"is_online": true})
	}
	if filter.CreatedBy != "" {
		builder = builder.Where(sq.Eq{"created_by": filter.CreatedBy})
	}
	if filter.ClaimedBy != "" {
		builder = builder.Where(sq.Eq{"claimed_by": filter.ClaimedBy})
	}
	if filter.SponsorUserID != "" {
		builder = builder.Where(sponsorsContain(map[string]any{"userId": filter.SponsorUserID}))
	}
	if filter.PendingSponsors {
		builder = builder.Where(sponsorsContain(map[string]any{"status": types.SponsorStatusPending}))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate causes query: %w", err)
	}

	causes := make([]*types.Cause, 0)
	if err := pgxscan.Select(ctx, r.pool, &causes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch causes: %w", err)
	}

	return causes, nil
}

// sponsorsContain matches causes with at least one sponsor entry having
// the given fields. It is served by the GIN index on sponsors.
func sponsorsContain(fields map[string]any) sq.Sqlizer {
	doc, _ := json.Marshal([]map[string]any{fields})
	return sq.Expr("sponsors @> ?::jsonb", string(doc))
}

func (r *CauseRepository) CreateCause(ctx context.Context, cause *types.Cause) error {
	now := time.Now()
	if cause.ID == "" {
		cause.ID = utils.NanoID()
	}
	if cause.Sponsors == nil {
		cause.Sponsors = []types.Sponsor{}
	}
	if cause.CreatedAt.IsZero() {
		cause.CreatedAt = now
	}
	cause.UpdatedAt = now

	return execBuilder(ctx, r.pool, psql().
		Insert(causeTableName).
		SetMap(utils.StructToMap(cause)), "create cause")
}

func (r *CauseRepository) DeleteCause(ctx context.Context, causeID string) error {
	query, args, err := psql().Delete(causeTableName).Where(sq.Eq{"id": causeID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete cause query for cause %s: %w", causeID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete cause: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrCauseNotFound
	}

	return nil
}

// MutateCause locks the cause row, applies fn and writes the whole
// aggregate back in one transaction. Two admins approving different
// sponsors of the same cause are serialized here.
func (r *CauseRepository) MutateCause(ctx context.Context, causeID string, fn func(*types.Cause) error) (*types.Cause, error) {
	var out *types.Cause
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cause, err := lockCause(ctx, tx, causeID)
		if err != nil {
			return err
		}

		if err := fn(cause); err != nil {
			return err
		}

		if err := writeCause(ctx, tx, cause); err != nil {
			return err
		}

		out = cause
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func lockCause(ctx context.Context, tx pgx.Tx, causeID string) (*types.Cause, error) {
	var cause = new(types.Cause)
	err := getForUpdate(ctx, tx, cause, psql().
		Select(causeColumns...).
		From(causeTableName).
		Where(sq.Eq{"id": causeID}))
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrCauseNotFound
		}
		return nil, fmt.Errorf("failed to lock cause %s: %w", causeID, err)
	}

	return cause, nil
}

func writeCause(ctx context.Context, tx pgx.Tx, cause *types.Cause) error {
	cause.UpdatedAt = time.Now()
	return execBuilder(ctx, tx, psql().
		Update(causeTableName).
		SetMap(utils.StructToMapOmit(cause, "id", "created_at")).
		Where(sq.Eq{"id": cause.ID}), "update cause")
}
