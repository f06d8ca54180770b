package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order represents a completed customer order with pricing and discount details.
type Order struct {
	ID            string
	UserID        string
	Items         []OrderItem
	Subtotal      decimal.Decimal
	Discounts     decimal.Decimal
	Total         decimal.Decimal
	PromotionID   string
	PromotionCode string
	CreatedAt     time.Time
}

// OrderItem represents a single line item in an order. Price is the unit
// price at the time of purchase.
type OrderItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// CountByUser returns how many orders the user has placed.
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Transactor runs fn in a single transaction. Implementations may call fn
// more than once when the transaction has to be retried.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
