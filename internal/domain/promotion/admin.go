package promotion

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sort keys accepted by List.
const (
	SortCreatedAt = "createdAt"
	SortUpdatedAt = "updatedAt"
	SortStartDate = "startDate"
	SortEndDate   = "endDate"
	SortName      = "name"
	SortCode      = "code"
	SortDiscount  = "discount"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// ListFilter selects a page of promotions.
type ListFilter struct {
	// ActiveOnly keeps promotions that are active and within their window
	// at Now.
	ActiveOnly bool
	Now        time.Time
	Page       int
	Limit      int
	SortBy     string
	// SortOrder is "asc" or "desc".
	SortOrder string
}

// Meta describes the page returned by List.
type Meta struct {
	Total      int
	Page       int
	Limit      int
	TotalPages int
}

// ListResult is a page of promotions.
type ListResult struct {
	Items []Promotion
	Meta  Meta
}

// ConditionInput describes a condition to attach to a promotion. IsActive
// defaults to true.
type ConditionInput struct {
	Type     ConditionType
	Value    string
	Payload  []byte
	IsActive *bool
}

// Input holds the fields of a new promotion. IsActive defaults to true and
// Type to TypeGeneral.
type Input struct {
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
	IsActive          *bool
	Conditions        []ConditionInput
	ProductIDs        []string
	CategoryIDs       []string
}

// Patch is a partial update. Nil fields are left unchanged; non-nil
// collections replace the stored ones wholesale.
type Patch struct {
	Code              *string
	Name              *string
	Image             *string
	Description       *string
	Type              *Type
	StartDate         *time.Time
	EndDate           *time.Time
	Discount          *decimal.Decimal
	DiscountType      *DiscountType
	MaxDiscount       *decimal.Decimal
	UsageLimit        *int
	UsageLimitPerUser *int
	MinPurchase       *decimal.Decimal
	IsActive          *bool
	Conditions        *[]ConditionInput
	ProductIDs        *[]string
	CategoryIDs       *[]string
}

// Invalidator drops cached lookups for a promotion code.
type Invalidator interface {
	Invalidate(ctx context.Context, codes ...string) error
}

// Admin manages promotion definitions.
type Admin struct {
	repo        Repository
	invalidator Invalidator
	now         func() time.Time
}

// NewAdmin creates an Admin. invalidator may be nil.
func NewAdmin(repo Repository, invalidator Invalidator) *Admin {
	return &Admin{repo: repo, invalidator: invalidator, now: time.Now}
}

// Create validates in and stores the promotion with its conditions and links.
func (a *Admin) Create(ctx context.Context, in Input) (*Promotion, error) {
	now := a.now().UTC()
	p := &Promotion{
		ID:                uuid.New().String(),
		Code:              strings.TrimSpace(in.Code),
		Name:              strings.TrimSpace(in.Name),
		Image:             in.Image,
		Description:       in.Description,
		Type:              in.Type,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Discount:          in.Discount,
		DiscountType:      in.DiscountType,
		MaxDiscount:       in.MaxDiscount,
		UsageLimit:        in.UsageLimit,
		UsageLimitPerUser: in.UsageLimitPerUser,
		MinPurchase:       in.MinPurchase,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
		Conditions:        buildConditions(in.Conditions),
		ProductIDs:        dedupe(in.ProductIDs),
		CategoryIDs:       dedupe(in.CategoryIDs),
	}
	if p.Type == "" {
		p.Type = TypeGeneral
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := checkPromotion(p); err != nil {
		return nil, err
	}

	if err := a.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrCodeExists) {
			return nil, reject(ErrCodeExists, "Promotion code %q already exists", p.Code)
		}
		return nil, errors.Wrap(err, "create promotion")
	}
	a.invalidate(ctx, p.Code)
	return p, nil
}

// Get returns a promotion by id.
func (a *Admin) Get(ctx context.Context, id string) (*Promotion, error) {
	p, err := a.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPromotionNotFound) {
			return nil, reject(ErrPromotionNotFound, "Promotion not found")
		}
		return nil, errors.Wrap(err, "get promotion")
	}
	return p, nil
}

// List returns a page of promotions. Zero page and limit fall back to
// defaults; unknown sort keys are rejected.
func (a *Admin) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Page <= 0 {
		f.Page = defaultPage
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	switch f.SortBy {
	case "":
		f.SortBy = SortCreatedAt
	case SortCreatedAt, SortUpdatedAt, SortStartDate, SortEndDate, SortName, SortCode, SortDiscount:
	default:
		return nil, invalidInput("Cannot sort promotions by %q", f.SortBy)
	}
	switch strings.ToLower(f.SortOrder) {
	case "":
		f.SortOrder = "desc"
	case "asc", "desc":
		f.SortOrder = strings.ToLower(f.SortOrder)
	default:
		return nil, invalidInput("Sort order must be asc or desc")
	}
	if f.ActiveOnly && f.Now.IsZero() {
		f.Now = a.now()
	}

	items, total, err := a.repo.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}
	return &ListResult{
		Items: items,
		Meta: Meta{
			Total:      total,
			Page:       f.Page,
			Limit:      f.Limit,
			TotalPages: (total + f.Limit - 1) / f.Limit,
		},
	}, nil
}

// Update applies patch to the promotion with the given id. Invariants are
// checked against the merged result.
func (a *Admin) Update(ctx context.Context, id string, patch Patch) (*Promotion, error) {
	p, err := a.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldCode := p.Code

	replace := applyPatch(p, patch)
	p.UpdatedAt = a.now().UTC()
	if err := checkPromotion(p); err != nil {
		return nil, err
	}

	if err := a.repo.Update(ctx, p, replace); err != nil {
		switch {
		case errors.Is(err, ErrCodeExists):
			return nil, reject(ErrCodeExists, "Promotion code %q already exists", p.Code)
		case errors.Is(err, ErrPromotionNotFound):
			return nil, reject(ErrPromotionNotFound, "Promotion not found")
		}
		return nil, errors.Wrap(err, "update promotion")
	}
	if oldCode != p.Code {
		a.invalidate(ctx, oldCode, p.Code)
	} else {
		a.invalidate(ctx, p.Code)
	}
	return p, nil
}

// Delete removes a promotion with its conditions, links and usages.
func (a *Admin) Delete(ctx context.Context, id string) error {
	p, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrPromotionNotFound) {
			return reject(ErrPromotionNotFound, "Promotion not found")
		}
		return errors.Wrap(err, "delete promotion")
	}
	a.invalidate(ctx, p.Code)
	return nil
}

// invalidate is best effort: a stale entry expires with the cache TTL.
func (a *Admin) invalidate(ctx context.Context, codes ...string) {
	if a.invalidator == nil {
		return
	}
	if err := a.invalidator.Invalidate(ctx, codes...); err != nil {
		zctx.From(ctx).Warn("Failed to invalidate promotion cache",
			zap.Strings("codes", codes),
			zap.Error(err),
		)
	}
}

func applyPatch(p *Promotion, patch Patch) Replace {
	if patch.Code != nil {
		p.Code = strings.TrimSpace(*patch.Code)
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Image != nil {
		p.Image = *patch.Image
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Type != nil {
		p.Type = *patch.Type
	}
	if patch.StartDate != nil {
		p.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		p.EndDate = *patch.EndDate
	}
	if patch.Discount != nil {
		p.Discount = *patch.Discount
	}
	if patch.DiscountType != nil {
		p.DiscountType = *patch.DiscountType
	}
	if patch.MaxDiscount != nil {
		p.MaxDiscount = patch.MaxDiscount
	}
	if patch.UsageLimit != nil {
		p.UsageLimit = patch.UsageLimit
	}
	if patch.UsageLimitPerUser != nil {
		p.UsageLimitPerUser = patch.UsageLimitPerUser
	}
	if patch.MinPurchase != nil {
		p.MinPurchase = patch.MinPurchase
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}

	var replace Replace
	if patch.Conditions != nil {
		p.Conditions = buildConditions(*patch.Conditions)
		replace.Conditions = true
	}
	if patch.ProductIDs != nil {
		p.ProductIDs = dedupe(*patch.ProductIDs)
		replace.Products = true
	}
	if patch.CategoryIDs != nil {
		p.CategoryIDs = dedupe(*patch.CategoryIDs)
		replace.Categories = true
	}
	return replace
}

func buildConditions(in []ConditionInput) []ConditionRecord {
	out := make([]ConditionRecord, 0, len(in))
	for _, c := range in {
		active := true
		if c.IsActive != nil {
			active = *c.IsActive
		}
		out = append(out, ConditionRecord{
			ID:       uuid.New().String(),
			Type:     c.Type,
			Value:    c.Value,
			Payload:  c.Payload,
			IsActive: active,
		})
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func checkPromotion(p *Promotion) error {
	switch {
	case p.Code == "":
		return invalidInput("Promotion code is required")
	case p.Name == "":
		return invalidInput("Promotion name is required")
	case !p.Type.Valid():
		return invalidInput("Unknown promotion type %q", p.Type)
	case !p.DiscountType.Valid():
		return invalidInput("Unknown discount type %q", p.DiscountType)
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return invalidInput("Start and end dates are required")
	case p.StartDate.After(p.EndDate):
		return invalidInput("Start date must not be after end date")
	case !p.Discount.IsPositive():
		return invalidInput("Discount must be positive")
	case p.DiscountType == DiscountPercentage && p.Discount.GreaterThan(hundred):
		return invalidInput("Percentage discount cannot exceed 100")
	case p.MaxDiscount != nil && !p.MaxDiscount.IsPositive():
		return invalidInput("Max discount must be positive")
	case p.MinPurchase != nil && !p.MinPurchase.IsPositive():
		return invalidInput("Minimum purchase must be positive")
	case p.UsageLimit != nil && *p.UsageLimit <= 0:
		return invalidInput("Usage limit must be positive")
	case p.UsageLimitPerUser != nil && *p.UsageLimitPerUser <= 0:
		return invalidInput("Per-user usage limit must be positive")
	case p.UsageLimit != nil && *p.UsageLimit > math.MaxInt32:
		return invalidInput("Usage limit cannot exceed %d", math.MaxInt32)
	case p.UsageLimitPerUser != nil && *p.UsageLimitPerUser > math.MaxInt32:
		return invalidInput("Per-user usage limit cannot exceed %d", math.MaxInt32)
	}

	for _, c := range p.Conditions {
		if !c.Type.Valid() {
			return invalidInput("Unknown condition type %q", c.Type)
		}
		compiled, err := compileRecord(c, p)
		if err != nil {
			return invalidInput("Invalid %s condition: %s", c.Type, err.Error())
		}
		switch cc := compiled.(type) {
		case SpecificProducts:
			if len(cc.ProductIDs) == 0 {
				return invalidInput("Invalid %s condition: payload lists no productIds", c.Type)
			}
		case SpecificCategories:
			if len(cc.CategoryIDs) == 0 {
				return invalidInput("Invalid %s condition: payload lists no categoryIds", c.Type)
			}
		}
	}
	return nil
}
