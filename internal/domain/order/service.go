package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promotions/internal/domain/product"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = fmt.Errorf("items required")
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
	ErrUserRequired    = fmt.Errorf("user id required")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

func (e *InvalidQuantityError) Unwrap() error {
	return ErrInvalidQuantity
}

// PromotionValidator decides whether a promotion applies to a priced cart.
type PromotionValidator interface {
	Validate(ctx context.Context, req promotion.ValidateRequest) (*promotion.Decision, error)
}

// UsageRecorder records that an order consumed a promotion.
type UsageRecorder interface {
	Record(ctx context.Context, req promotion.RecordRequest) (*promotion.Usage, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	UserID        string
	Items         []OrderItem
	PromotionCode string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Products []product.Product
	// Usage is nil when no promotion was applied.
	Usage *promotion.Usage
}

// Service encapsulates order placement business logic.
type Service struct {
	products  product.Repository
	validator PromotionValidator
	recorder  UsageRecorder
	orders    Repository
	tx        Transactor
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	validator PromotionValidator,
	recorder UsageRecorder,
	orders Repository,
	tx Transactor,
) *Service {
	return &Service{
		products:  products,
		validator: validator,
		recorder:  recorder,
		orders:    orders,
		tx:        tx,
		now:       time.Now,
	}
}

// PlaceOrder validates items, prices them from the catalog, and then in one
// transaction validates the promotion, persists the order and records the
// promotion usage.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.UserID == "" {
		return nil, ErrUserRequired
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Validate quantities and collect product IDs.
	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	// Verify every requested product was found.
	products := make([]product.Product, 0, len(req.Items))
	for _, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		products = append(products, p)
	}

	// Price lines from the catalog and calculate subtotal.
	items := make([]OrderItem, len(req.Items))
	cart := make([]promotion.CartItem, len(req.Items))
	subtotal := decimal.Zero
	for i, item := range req.Items {
		price := products[i].Price
		items[i] = OrderItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: price}
		cart[i] = promotion.CartItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: price}
		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	o := &Order{
		ID:            uuid.New().String(),
		UserID:        req.UserID,
		Items:         items,
		Subtotal:      subtotal.Round(2),
		PromotionCode: req.PromotionCode,
	}
	var usage *promotion.Usage

	if err := s.tx.Do(ctx, func(ctx context.Context) error {
		usage = nil
		discount := decimal.Zero
		o.PromotionID = ""
		if req.PromotionCode != "" {
			dec, err := s.validator.Validate(ctx, promotion.ValidateRequest{
				Code:      req.PromotionCode,
				UserID:    req.UserID,
				Items:     cart,
				CartTotal: subtotal,
			})
			if err != nil {
				return fmt.Errorf("validate promotion: %w", err)
			}
			discount = dec.DiscountAmount
			o.PromotionID = dec.Promotion.ID
		}

		// Total = subtotal - discount, floored at zero and rounded to 2 decimal places.
		o.Discounts = discount.Round(2)
		o.Total = promotion.FinalTotal(subtotal, discount).Round(2)
		o.CreatedAt = s.now().UTC()

		if err := s.orders.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		if o.PromotionID != "" {
			u, err := s.recorder.Record(ctx, promotion.RecordRequest{
				PromotionID: o.PromotionID,
				UserID:      req.UserID,
				OrderID:     o.ID,
			})
			if err != nil {
				return fmt.Errorf("record promotion usage: %w", err)
			}
			usage = u
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &PlaceOrderResult{
		Order:    o,
		Products: products,
		Usage:    usage,
	}, nil
}
