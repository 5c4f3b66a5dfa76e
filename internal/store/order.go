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

const orderTableName = "causeconnect.orders"

var orderColumns = utils.StructTagValues(types.Order{})

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) OrderByGatewayID(ctx context.Context, gatewayOrderID string) (*types.Order, error) {
	query, args, err := psql().
		Select(orderColumns...).
		From(orderTableName).
		Where(sq.Eq{"gateway_order_id": gatewayOrderID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order query: %w", err)
	}

	var order = new(types.Order)
	err = pgxscan.Get(ctx, r.pool, order, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to fetch order %s: %w", gatewayOrderID, err)
	}

	return order, nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *types.Order) error {
	now := time.Now()
	if order.ID == "" {
		order.ID = utils.NanoID()
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	query, args, err := psql().
		Insert(orderTableName).
		SetMap(utils.StructToMap(order)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate create order query: %w", err)
	}

	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return types.ConflictError("order %s already exists", order.GatewayOrderID)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// MutateOrder locks the order by its gateway id and writes fn's changes back.
func (r *OrderRepository) MutateOrder(ctx context.Context, gatewayOrderID string, fn func(*types.Order) error) (*types.Order, error) {
	var out *types.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var order = new(types.Order)
		err := getForUpdate(ctx, tx, order, psql().
			Select(orderColumns...).
			From(orderTableName).
			Where(sq.Eq{"gateway_order_id": gatewayOrderID}))
		if err != nil {
			if pgxscan.NotFound(err) {
				return types.ErrOrderNotFound
			}
			return fmt.Errorf("failed to lock order %s: %w", gatewayOrderID, err)
		}

		if err := fn(order); err != nil {
			return err
		}

		order.UpdatedAt = time.Now()
		if err := execBuilder(ctx, tx, psql().
			Update(orderTableName).
			SetMap(utils.StructToMapOmit(order, "id", "gateway_order_id", "amount", "currency", "created_at")).
			Where(sq.Eq{"id": order.ID}), "update order"); err != nil {
			return err
		}

		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}
