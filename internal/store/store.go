package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

func psql() sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	pgxscan.Querier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	_ querier = (*pgxpool.Pool)(nil)
	_ querier = (pgx.Tx)(nil)
)

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// getForUpdate loads one row and locks it for the rest of tx.
func getForUpdate(ctx context.Context, tx pgx.Tx, dst any, builder sq.SelectBuilder) error {
	query, args, err := builder.Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate locking select: %w", err)
	}

	return pgxscan.Get(ctx, tx, dst, query, args...)
}

func execBuilder(ctx context.Context, q querier, builder sq.Sqlizer, action string) error {
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate %s query: %w", action, err)
	}

	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}

	return nil
}

func count(ctx context.Context, q querier, builder sq.SelectBuilder) (int, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate count query: %w", err)
	}

	var total int
	if err := pgxscan.Get(ctx, q, &total, query, args...); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}

	return total, nil
}

func offset(page, limit int) uint64 {
	if page < 1 {
		return 0
	}
	return uint64((page - 1) * limit)
}
