package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promotions/internal/domain/product"
	"github.com/xenking/kart-promotions/internal/domain/user"
)

// OrderHistory counts the orders a user has already placed.
type OrderHistory interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// ProductLookup resolves cart product ids to catalog products.
type ProductLookup interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// UserLookup resolves a user id. Missing users yield user.ErrNotFound.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

// EvalContext is the user and cart snapshot conditions are checked against.
type EvalContext struct {
	// UserID is empty for anonymous carts.
	UserID    string
	Items     []CartItem
	CartTotal decimal.Decimal
	Now       time.Time
}

// Evaluator checks compiled conditions, consulting collaborators for order
// history, catalog categories and user roles.
type Evaluator struct {
	orders   OrderHistory
	products ProductLookup
	users    UserLookup
}

// NewEvaluator creates an Evaluator.
func NewEvaluator(orders OrderHistory, products ProductLookup, users UserLookup) *Evaluator {
	return &Evaluator{orders: orders, products: products, users: users}
}

// EvaluateAll checks every condition in order and returns the first failure.
func (e *Evaluator) EvaluateAll(ctx context.Context, conds []Condition, ec EvalContext) error {
	for _, c := range conds {
		if err := e.Evaluate(ctx, c, ec); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate returns nil when c holds. A failed condition yields a
// *RejectionError; collaborator failures are returned wrapped.
func (e *Evaluator) Evaluate(ctx context.Context, c Condition, ec EvalContext) error {
	switch c := c.(type) {
	case Unconstrained:
		return nil
	case FirstTimePurchase:
		if ec.UserID == "" {
			return nil
		}
		n, err := e.orders.CountByUser(ctx, ec.UserID)
		if err != nil {
			return errors.Wrap(err, "count user orders")
		}
		if n > 0 {
			return conditionFailed(c.Kind(), "This promotion is only valid for first-time purchases")
		}
		return nil
	case SpecificProducts:
		for _, item := range ec.Items {
			if _, ok := c.ProductIDs[item.ProductID]; ok {
				return nil
			}
		}
		return conditionFailed(c.Kind(), "Your cart doesn't contain the products required for this promotion")
	case SpecificCategories:
		ok, err := e.cartHasCategory(ctx, ec.Items, c.CategoryIDs)
		if err != nil {
			return err
		}
		if !ok {
			return conditionFailed(c.Kind(), "Your cart doesn't contain products from the required categories")
		}
		return nil
	case QuantityThreshold:
		total := 0
		for _, item := range ec.Items {
			total += item.Quantity
		}
		if total < c.Min {
			return conditionFailed(c.Kind(), fmt.Sprintf("This promotion requires at least %d items in your cart", c.Min))
		}
		return nil
	case TotalItems:
		if distinctItems(ec.Items) < c.Min {
			return conditionFailed(c.Kind(), fmt.Sprintf("This promotion requires at least %d different items in your cart", c.Min))
		}
		return nil
	case UserRole:
		if ec.UserID == "" {
			return nil
		}
		u, err := e.users.GetByID(ctx, ec.UserID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return conditionFailed(c.Kind(), "This promotion is not available for your user role")
			}
			return errors.Wrap(err, "get user")
		}
		if u.Role != c.Role {
			return conditionFailed(c.Kind(), "This promotion is not available for your user role")
		}
		return nil
	case TimeOfDay:
		if !c.contains(ec.Now) {
			return conditionFailed(c.Kind(), fmt.Sprintf("This promotion is only available between %s and %s UTC",
				formatClock(c.Start), formatClock(c.End)))
		}
		return nil
	case DayOfWeek:
		if !c.Days[ec.Now.UTC().Weekday()] {
			return conditionFailed(c.Kind(), "This promotion is not available today")
		}
		return nil
	case Malformed:
		return &RejectionError{
			Kind:      ErrMalformedCondition,
			Message:   fmt.Sprintf("Promotion condition %s is misconfigured", c.Type),
			Condition: c.Type,
		}
	default:
		return &RejectionError{
			Kind:    ErrMalformedCondition,
			Message: fmt.Sprintf("Unsupported promotion condition %T", c),
		}
	}
}

func (e *Evaluator) cartHasCategory(ctx context.Context, items []CartItem, categories map[string]struct{}) (bool, error) {
	if len(items) == 0 || len(categories) == 0 {
		return false, nil
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	products, err := e.products.GetByIDs(ctx, ids)
	if err != nil {
		return false, errors.Wrap(err, "get cart products")
	}
	for _, p := range products {
		if _, ok := categories[p.CategoryID]; ok {
			return true, nil
		}
	}
	return false, nil
}

func distinctItems(items []CartItem) int {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		seen[item.ProductID] = struct{}{}
	}
	return len(seen)
}

func (c TimeOfDay) contains(now time.Time) bool {
	now = now.UTC()
	m := now.Hour()*60 + now.Minute()
	switch {
	case c.Start == c.End:
		return true
	case c.Start < c.End:
		return m >= c.Start && m < c.End
	default:
		return m >= c.Start || m < c.End
	}
}

func formatClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
