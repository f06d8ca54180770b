package promotion

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promotion discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the cart total, optionally
	// capped by MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount takes a fixed amount, capped at the cart total.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixedAmount
}

// Type classifies a promotion for display and reporting.
type Type string

const (
	TypeSeasonalOffer Type = "seasonal_offer"
	TypeFirstOrder    Type = "first_order"
	TypeFlashSale     Type = "flash_sale"
	TypeClearance     Type = "clearance"
	TypeBundle        Type = "bundle"
	TypeLoyalty       Type = "loyalty"
	TypeGeneral       Type = "general"
)

// Valid reports whether t is a known promotion type.
func (t Type) Valid() bool {
	switch t {
	case TypeSeasonalOffer, TypeFirstOrder, TypeFlashSale, TypeClearance,
		TypeBundle, TypeLoyalty, TypeGeneral:
		return true
	}
	return false
}

// ConditionType tags a stored condition row.
type ConditionType string

const (
	ConditionFirstTimePurchase  ConditionType = "first_time_purchase"
	ConditionSpecificProducts   ConditionType = "specific_products"
	ConditionSpecificCategories ConditionType = "specific_categories"
	ConditionQuantityThreshold  ConditionType = "quantity_threshold"
	ConditionTotalItems         ConditionType = "total_items"
	ConditionUserRole           ConditionType = "user_role"
	ConditionTimeOfDay          ConditionType = "time_of_day"
	ConditionDayOfWeek          ConditionType = "day_of_week"
)

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionFirstTimePurchase, ConditionSpecificProducts, ConditionSpecificCategories,
		ConditionQuantityThreshold, ConditionTotalItems, ConditionUserRole,
		ConditionTimeOfDay, ConditionDayOfWeek:
		return true
	}
	return false
}

// ConditionRecord is a condition row as stored. Payload holds the raw JSON
// document, nil when the row has none.
type ConditionRecord struct {
	ID       string
	Type     ConditionType
	Value    string
	Payload  []byte
	IsActive bool
}

// Promotion is a discount campaign redeemable by code.
//
// Optional numeric fields are nil when unset.
type Promotion struct {
	ID                string
	Code              string
	Name              string
	Image             string
	Description       string
	Type              Type
	StartDate         time.Time
	EndDate           time.Time
	Discount          decimal.Decimal
	DiscountType      DiscountType
	MaxDiscount       *decimal.Decimal
	UsageLimit        *int
	UsageLimitPerUser *int
	MinPurchase       *decimal.Decimal
	IsActive          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Conditions  []ConditionRecord
	ProductIDs  []string
	CategoryIDs []string
	// UsageCount is a snapshot taken when the promotion was read. Cached
	// lookups leave it zero; validation always counts usages from the store
	// and refreshes it when it does.
	UsageCount int
}

// Usage is an append-only record of a consumed promotion.
type Usage struct {
	ID          string
	PromotionID string
	UserID      string
	OrderID     string
	UsedAt      time.Time
}

// CartItem is a line of the cart snapshot supplied with a validation call.
// Price is optional and zero when not supplied.
type CartItem struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// Decision is the outcome of a successful validation.
type Decision struct {
	Promotion      *Promotion
	DiscountAmount decimal.Decimal
	FinalTotal     decimal.Decimal
}

// Repository provides promotion lookups and admin persistence.
type Repository interface {
	// FindActiveByCode returns the active promotion with exactly this code,
	// or ErrInvalidCode.
	FindActiveByCode(ctx context.Context, code string) (*Promotion, error)
	// GetByID returns ErrPromotionNotFound when no promotion has this id.
	GetByID(ctx context.Context, id string) (*Promotion, error)
	List(ctx context.Context, filter ListFilter) ([]Promotion, int, error)
	// Create returns ErrCodeExists when the code is taken.
	Create(ctx context.Context, p *Promotion) error
	// Update replaces scalar fields; conditions and links are replaced only
	// when the corresponding Replace flag is set.
	Update(ctx context.Context, p *Promotion, replace Replace) error
	Delete(ctx context.Context, id string) error
}

// Replace selects which child collections Repository.Update rewrites.
type Replace struct {
	Conditions bool
	Products   bool
	Categories bool
}

// UsageRepository counts and appends promotion usages.
type UsageRepository interface {
	Count(ctx context.Context, promotionID string) (int, error)
	CountByUser(ctx context.Context, promotionID, userID string) (int, error)
	Create(ctx context.Context, u *Usage) error
}
