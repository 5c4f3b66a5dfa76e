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

const logoReviewTableName = "causeconnect.logo_reviews"

var logoReviewColumns = utils.StructTagValues(types.LogoReview{})

type LogoReviewRepository struct {
	pool *pgxpool.Pool
}

func NewLogoReviewRepository(pool *pgxpool.Pool) *LogoReviewRepository {
	return &LogoReviewRepository{pool: pool}
}

func (r *LogoReviewRepository) LogoReview(ctx context.Context, reviewID string) (*types.LogoReview, error) {
	return r.reviewWhere(ctx, sq.Eq{"id": reviewID})
}

func (r *LogoReviewRepository) LogoReviewBySponsor(ctx context.Context, campaignID, sponsorID string) (*types.LogoReview, error) {
	return r.reviewWhere(ctx, sq.Eq{"campaign_id": campaignID, "sponsor_id": sponsorID})
}

func (r *LogoReviewRepository) reviewWhere(ctx context.Context, pred sq.Eq) (*types.LogoReview, error) {
	query, args, err := psql().
		Select(logoReviewColumns...).
		From(logoReviewTableName).
		Where(pred).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate logo review query: %w", err)
	}

	var review = new(types.LogoReview)
	err = pgxscan.Get(ctx, r.pool, review, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrLogoReviewNotFound
		}
		return nil, fmt.Errorf("failed to fetch logo review: %w", err)
	}

	return review, nil
}

func (r *LogoReviewRepository) LogoReviews(ctx context.Context, filter types.LogoReviewFilter) ([]*types.LogoReview, int, error) {
	filter.Normalize()

	pred := sq.And{}
	if filter.Status != "" {
		pred = append(pred, sq.Eq{"status": filter.Status})
	}
	if filter.CampaignID != "" {
		pred = append(pred, sq.Eq{"campaign_id": filter.CampaignID})
	}

	total, err := count(ctx, r.pool, psql().Select("COUNT(*)").From(logoReviewTableName).Where(pred))
	if err != nil {
		return nil, 0, err
	}

	query, args, err := psql().
		Select(logoReviewColumns...).
		From(logoReviewTableName).
		Where(pred).
		OrderBy("created_at DESC").
		Limit(uint64(filter.Limit)).
		Offset(offset(filter.Page, filter.Limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to generate logo reviews query: %w", err)
	}

	reviews := make([]*types.LogoReview, 0)
	if err := pgxscan.Select(ctx, r.pool, &reviews, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logo reviews: %w", err)
	}

	return reviews, total, nil
}

func (r *LogoReviewRepository) CreateLogoReview(ctx context.Context, review *types.LogoReview) error {
	now := time.Now()
	if review.ID == "" {
		review.ID = utils.NanoID()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	return execBuilder(ctx, r.pool, psql().
		Insert(logoReviewTableName).
		SetMap(utils.StructToMap(review)), "create logo review")
}

func (r *LogoReviewRepository) MutateLogoReview(ctx context.Context, reviewID string, fn func(*types.LogoReview) error) (*types.LogoReview, error) {
	var out *types.LogoReview
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var review = new(types.LogoReview)
		err := getForUpdate(ctx, tx, review, psql().
			Select(logoReviewColumns...).
			From(logoReviewTableName).
			Where(sq.Eq{"id": reviewID}))
		if err != nil {
			if pgxscan.NotFound(err) {
				return types.ErrLogoReviewNotFound
			}
			return fmt.Errorf("failed to lock logo review %s: %w", reviewID, err)
		}

		if err := fn(review); err != nil {
			return err
		}

		review.UpdatedAt = time.Now()
		if err := execBuilder(ctx, tx, psql().
			Update(logoReviewTableName).
			SetMap(utils.StructToMapOmit(review, "id", "created_at")).
			Where(sq.Eq{"id": reviewID}), "update logo review"); err != nil {
			return err
		}

		out = review
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
