package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promotions/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, items, subtotal, discounts, total,
		promotion_id, promotion_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	countOrdersByUserSQL = `SELECT COUNT(*) FROM orders WHERE user_id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.UserID, encodeOrderItems(o.Items), o.Subtotal, o.Discounts, o.Total,
		o.PromotionID, o.PromotionCode, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

// CountByUser returns the number of orders placed by the user.
func (r *OrderRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countOrdersByUserSQL, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of %q: %w", userID, err)
	}
	return int(n), nil
}

func encodeOrderItems(items []order.OrderItem) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, item := range items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		e.Str(item.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}
