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

const waitlistTableName = "causeconnect.waitlist_entries"

var waitlistColumns = utils.StructTagValues(types.WaitlistEntry{})

type WaitlistRepository struct {
	pool *pgxpool.Pool
}

func NewWaitlistRepository(pool *pgxpool.Pool) *WaitlistRepository {
	return &WaitlistRepository{pool: pool}
}

func (r *WaitlistRepository) WaitlistEntry(ctx context.Context, entryID string) (*types.WaitlistEntry, error) {
	return r.entryWhere(ctx, sq.Eq{"id": entryID})
}

func (r *WaitlistRepository) WaitlistEntryByToken(ctx context.Context, token string) (*types.WaitlistEntry, error) {
	if token == "" {
		return nil, types.ErrWaitlistEntryNotFound
	}
	return r.entryWhere(ctx, sq.Eq{"magic_link_token": token})
}

func (r *WaitlistRepository) entryWhere(ctx context.Context, pred sq.Eq) (*types.WaitlistEntry, error) {
	query, args, err := psql().
		Select(waitlistColumns...).
		From(waitlistTableName).
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate waitlist entry query: %w", err)
	}

	var entry = new(types.WaitlistEntry)
	err = pgxscan.Get(ctx, r.pool, entry, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrWaitlistEntryNotFound
		}
		return nil, fmt.Errorf("failed to fetch waitlist entry: %w", err)
	}

	return entry, nil
}

func (r *WaitlistRepository) WaitlistEntries(ctx context.Context, filter types.WaitlistFilter) ([]*types.WaitlistEntry, error) {
	builder := psql().
		Select(waitlistColumns...).
		From(waitlistTableName).
		OrderBy("cause_id", "position ASC")

	if filter.CauseID != "" {
		builder = builder.Where(sq.Eq{"cause_id": filter.CauseID})
	}
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate waitlist query: %w", err)
	}

	entries := make([]*types.WaitlistEntry, 0)
	if err := pgxscan.Select(ctx, r.pool, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch waitlist entries: %w", err)
	}

	return entries, nil
}

// JoinWaitlist inserts entry at the back of its cause's queue. The cause row
// is locked while the next position is computed, so concurrent joins get
// distinct, increasing positions. check runs against the locked cause.
func (r *WaitlistRepository) JoinWaitlist(ctx context.Context, entry *types.WaitlistEntry, check func(*types.Cause) error) (*types.WaitlistEntry, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cause, err := lockCause(ctx, tx, entry.CauseID)
		if err != nil {
			return err
		}

		if err := check(cause); err != nil {
			return err
		}

		var existing int
		existing, err = count(ctx, tx, psql().
			Select("COUNT(*)").
			From(waitlistTableName).
			Where(sq.Eq{"cause_id": entry.CauseID, "user_id": entry.UserID}))
		if err != nil {
			return err
		}
		if existing > 0 {
			return types.ConflictError("you are already on the waitlist for this cause")
		}

		query, args, err := psql().
			Select("COALESCE(MAX(position), 0) + 1").
			From(waitlistTableName).
			Where(sq.Eq{"cause_id": entry.CauseID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate next position query: %w", err)
		}
		if err := pgxscan.Get(ctx, tx, &entry.Position, query, args...); err != nil {
			return fmt.Errorf("failed to compute waitlist position: %w", err)
		}

		if entry.ID == "" {
			entry.ID = utils.NanoID()
		}

		query, args, err = psql().
			Insert(waitlistTableName).
			SetMap(utils.StructToMap(entry)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate insert waitlist entry query: %w", err)
		}

		if _, err := tx.Exec(ctx, query, args...); err != nil {
			if isUniqueViolation(err) {
				return types.ConflictError("you are already on the waitlist for this cause")
			}
			return fmt.Errorf("failed to insert waitlist entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

func lockWaitlistEntry(ctx context.Context, tx pgx.Tx, entryID string) (*types.WaitlistEntry, error) {
	var entry = new(types.WaitlistEntry)
	err := getForUpdate(ctx, tx, entry, psql().
		Select(waitlistColumns...).
		From(waitlistTableName).
		Where(sq.Eq{"id": entryID}))
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrWaitlistEntryNotFound
		}
		return nil, fmt.Errorf("failed to lock waitlist entry %s: %w", entryID, err)
	}

	return entry, nil
}

func writeWaitlistEntry(ctx context.Context, tx pgx.Tx, entry *types.WaitlistEntry) error {
	entry.UpdatedAt = time.Now()
	return execBuilder(ctx, tx, psql().
		Update(waitlistTableName).
		SetMap(utils.StructToMapOmit(entry, "id", "cause_id", "position", "created_at")).
		Where(sq.Eq{"id": entry.ID}), "update waitlist entry")
}

// MutateWaitlistEntry locks the entry and passes its cause along for
// checks. Only the entry is written back; position is never rewritten.
func (r *WaitlistRepository) MutateWaitlistEntry(ctx context.Context, entryID string, fn func(*types.WaitlistEntry, *types.Cause) error) (*types.WaitlistEntry, error) {
	var out *types.WaitlistEntry
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		entry, err := lockWaitlistEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}

		cause, err := causeByID(ctx, tx, entry.CauseID)
		if err != nil {
			return err
		}

		if err := fn(entry, cause); err != nil {
			return err
		}

		if err := writeWaitlistEntry(ctx, tx, entry); err != nil {
			return err
		}

		out = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// RedeemMagicLink runs the whole redemption in one transaction: the entry
// and its cause are locked, redeem validates and mutates both and returns
// the claim to insert. A second redeemer blocks on the entry lock and then
// sees it already claimed.
func (r *WaitlistRepository) RedeemMagicLink(ctx context.Context, entryID string, redeem func(*types.WaitlistEntry, *types.Cause) (*types.Claim, error)) (*types.Claim, error) {
	var out *types.Claim
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		entry, err := lockWaitlistEntry(ctx, tx, entryID)
		if err != nil {
			return err
		}

		cause, err := lockCause(ctx, tx, entry.CauseID)
		if err != nil {
			return err
		}

		claim, err := redeem(entry, cause)
		if err != nil {
			return err
		}

		if err := insertClaim(ctx, tx, claim); err != nil {
			return err
		}
		if err := writeCause(ctx, tx, cause); err != nil {
			return err
		}
		if err := writeWaitlistEntry(ctx, tx, entry); err != nil {
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
