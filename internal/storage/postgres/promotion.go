package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

const promotionColumns = `p.id, p.code, p.name, p.image, p.description, p.type,
		p.start_date, p.end_date, p.discount, p.discount_type, p.max_discount,
		p.usage_limit, p.usage_limit_per_user, p.min_purchase, p.is_active,
		p.created_at, p.updated_at,
		COALESCE((SELECT array_agg(pp.product_id ORDER BY pp.product_id)
			FROM promotion_products pp WHERE pp.promotion_id = p.id), '{}'),
		COALESCE((SELECT array_agg(pc.category_id ORDER BY pc.category_id)
			FROM promotion_categories pc WHERE pc.promotion_id = p.id), '{}'),
		(SELECT COUNT(*) FROM promotion_usages pu WHERE pu.promotion_id = p.id)`

const (
	findActivePromotionByCodeSQL = `SELECT ` + promotionColumns + `
		FROM promotions p WHERE p.code = $1 AND p.is_active`

	getPromotionByIDSQL = `SELECT ` + promotionColumns + `
		FROM promotions p WHERE p.id = $1`

	listPromotionsSQL = `SELECT ` + promotionColumns + `, COUNT(*) OVER ()
		FROM promotions p
		WHERE NOT $1::boolean OR (p.is_active AND p.start_date <= $2 AND p.end_date >= $2)
		ORDER BY %s %s, p.id
		LIMIT $3 OFFSET $4`

	listConditionsSQL = `SELECT promotion_id, id, condition_type, value, payload, is_active
		FROM promotion_conditions WHERE promotion_id = ANY($1)
		ORDER BY promotion_id, position`

	insertPromotionSQL = `INSERT INTO promotions (id, code, name, image, description, type,
		start_date, end_date, discount, discount_type, max_discount,
		usage_limit, usage_limit_per_user, min_purchase, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	updatePromotionSQL = `UPDATE promotions SET code = $2, name = $3, image = $4, description = $5,
		type = $6, start_date = $7, end_date = $8, discount = $9, discount_type = $10,
		max_discount = $11, usage_limit = $12, usage_limit_per_user = $13, min_purchase = $14,
		is_active = $15, updated_at = $16
		WHERE id = $1`

	deletePromotionSQL = `DELETE FROM promotions WHERE id = $1`

	deleteConditionsSQL = `DELETE FROM promotion_conditions WHERE promotion_id = $1`
	insertConditionSQL  = `INSERT INTO promotion_conditions
		(id, promotion_id, condition_type, value, payload, is_active, position)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	deleteProductLinksSQL = `DELETE FROM promotion_products WHERE promotion_id = $1`
	insertProductLinkSQL  = `INSERT INTO promotion_products (promotion_id, product_id) VALUES ($1, $2)`

	deleteCategoryLinksSQL = `DELETE FROM promotion_categories WHERE promotion_id = $1`
	insertCategoryLinkSQL  = `INSERT INTO promotion_categories (promotion_id, category_id) VALUES ($1, $2)`
)

var sortColumns = map[string]string{
	promotion.SortCreatedAt: "p.created_at",
	promotion.SortUpdatedAt: "p.updated_at",
	promotion.SortStartDate: "p.start_date",
	promotion.SortEndDate:   "p.end_date",
	promotion.SortName:      "p.name",
	promotion.SortCode:      "p.code",
	promotion.SortDiscount:  "p.discount",
}

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// FindActiveByCode looks up an active promotion by its exact code.
// Returns promotion.ErrInvalidCode when none matches.
func (r *PromotionRepository) FindActiveByCode(ctx context.Context, code string) (*promotion.Promotion, error) {
	return r.getOne(ctx, promotion.ErrInvalidCode, findActivePromotionByCodeSQL, code)
}

// GetByID returns promotion.ErrPromotionNotFound when no promotion has id.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	return r.getOne(ctx, promotion.ErrPromotionNotFound, getPromotionByIDSQL, id)
}

func (r *PromotionRepository) getOne(ctx context.Context, notFound error, sql string, arg string) (*promotion.Promotion, error) {
	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting promotion %q: %w", arg, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPromotion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, fmt.Errorf("getting promotion %q: %w", arg, err)
	}

	promos := []promotion.Promotion{p}
	if err := loadConditions(ctx, q, promos); err != nil {
		return nil, err
	}
	return &promos[0], nil
}

// List returns a page of promotions and the total number matching the filter.
func (r *PromotionRepository) List(ctx context.Context, f promotion.ListFilter) ([]promotion.Promotion, int, error) {
	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[promotion.SortCreatedAt]
	}
	order := "DESC"
	if f.SortOrder == "asc" {
		order = "ASC"
	}
	limit := max(f.Limit, 1)
	offset := (max(f.Page, 1) - 1) * limit

	q := conn(ctx, r.pool)
	rows, err := q.Query(ctx, fmt.Sprintf(listPromotionsSQL, column, order),
		f.ActiveOnly, f.Now, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing promotions: %w", err)
	}

	var total int
	promos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.Promotion, error) {
		var n int64
		p, err := scanPromotionInto(row, &n)
		total = int(n)
		return p, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing promotions: %w", err)
	}
	if err := loadConditions(ctx, q, promos); err != nil {
		return nil, 0, err
	}
	return promos, total, nil
}

// Create inserts the promotion with its conditions and links in one
// transaction. Returns promotion.ErrCodeExists on a duplicate code.
func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	err := pgx.BeginFunc(ctx, conn(ctx, r.pool), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertPromotionSQL, promotionArgs(p)...); err != nil {
			return err
		}
		if err := insertConditions(ctx, tx, p); err != nil {
			return err
		}
		if err := insertLinks(ctx, tx, insertProductLinkSQL, p.ID, p.ProductIDs); err != nil {
			return err
		}
		return insertLinks(ctx, tx, insertCategoryLinkSQL, p.ID, p.CategoryIDs)
	})
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return fmt.Errorf("creating promotion %q: %w", p.Code, promotion.ErrCodeExists)
		}
		return fmt.Errorf("creating promotion %q: %w", p.Code, err)
	}
	return nil
}

// Update rewrites the promotion's scalar fields and, per replace, its
// conditions and links.
func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion, replace promotion.Replace) error {
	err := pgx.BeginFunc(ctx, conn(ctx, r.pool), func(tx pgx.Tx) error {
		args := promotionArgs(p)
		// created_at is immutable.
		args = append(args[:15], p.UpdatedAt)
		tag, err := tx.Exec(ctx, updatePromotionSQL, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return promotion.ErrPromotionNotFound
		}

		if replace.Conditions {
			if _, err := tx.Exec(ctx, deleteConditionsSQL, p.ID); err != nil {
				return err
			}
			if err := insertConditions(ctx, tx, p); err != nil {
				return err
			}
		}
		if replace.Products {
			if _, err := tx.Exec(ctx, deleteProductLinksSQL, p.ID); err != nil {
				return err
			}
			if err := insertLinks(ctx, tx, insertProductLinkSQL, p.ID, p.ProductIDs); err != nil {
				return err
			}
		}
		if replace.Categories {
			if _, err := tx.Exec(ctx, deleteCategoryLinksSQL, p.ID); err != nil {
				return err
			}
			if err := insertLinks(ctx, tx, insertCategoryLinkSQL, p.ID, p.CategoryIDs); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, promotion.ErrPromotionNotFound):
		return promotion.ErrPromotionNotFound
	case hasCode(err, codeUniqueViolation):
		return fmt.Errorf("updating promotion %q: %w", p.ID, promotion.ErrCodeExists)
	default:
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
}

// Delete removes the promotion. Conditions, links and usages cascade.
func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, deletePromotionSQL, id)
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return promotion.ErrPromotionNotFound
	}
	return nil
}

func promotionArgs(p *promotion.Promotion) []any {
	return []any{
		p.ID, p.Code, p.Name, p.Image, p.Description, string(p.Type),
		p.StartDate, p.EndDate, p.Discount, string(p.DiscountType), nullDecimal(p.MaxDiscount),
		nullInt(p.UsageLimit), nullInt(p.UsageLimitPerUser), nullDecimal(p.MinPurchase), p.IsActive,
		p.CreatedAt, p.UpdatedAt,
	}
}

func insertConditions(ctx context.Context, tx pgx.Tx, p *promotion.Promotion) error {
	if len(p.Conditions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, c := range p.Conditions {
		var payload []byte
		if len(c.Payload) > 0 {
			payload = c.Payload
		}
		batch.Queue(insertConditionSQL, c.ID, p.ID, string(c.Type), c.Value, payload, c.IsActive, i)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func insertLinks(ctx context.Context, tx pgx.Tx, sql, promotionID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(sql, promotionID, id)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func loadConditions(ctx context.Context, q querier, promos []promotion.Promotion) error {
	if len(promos) == 0 {
		return nil
	}
	ids := make([]string, len(promos))
	index := make(map[string]int, len(promos))
	for i, p := range promos {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := q.Query(ctx, listConditionsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing promotion conditions: %w", err)
	}
	var (
		promotionID string
		c           promotion.ConditionRecord
		kind        string
	)
	_, err = pgx.ForEachRow(rows, []any{&promotionID, &c.ID, &kind, &c.Value, &c.Payload, &c.IsActive}, func() error {
		c.Type = promotion.ConditionType(kind)
		rec := c
		if c.Payload != nil {
			rec.Payload = append([]byte(nil), c.Payload...)
		}
		i := index[promotionID]
		promos[i].Conditions = append(promos[i].Conditions, rec)
		c.Payload = nil
		return nil
	})
	if err != nil {
		return fmt.Errorf("scanning promotion conditions: %w", err)
	}
	return nil
}

func scanPromotion(row pgx.CollectableRow) (promotion.Promotion, error) {
	return scanPromotionInto(row)
}

// scanPromotionInto scans promotionColumns followed by extra destinations.
func scanPromotionInto(row pgx.CollectableRow, extra ...any) (promotion.Promotion, error) {
	var (
		p                 promotion.Promotion
		kind              string
		discountType      string
		discount          decimal.Decimal
		maxDiscount       decimal.NullDecimal
		minPurchase       decimal.NullDecimal
		usageLimit        *int32
		usageLimitPerUser *int32
		startDate         time.Time
		endDate           time.Time
		usageCount        int64
	)
	dest := []any{
		&p.ID, &p.Code, &p.Name, &p.Image, &p.Description, &kind,
		&startDate, &endDate, &discount, &discountType, &maxDiscount,
		&usageLimit, &usageLimitPerUser, &minPurchase, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt,
		&p.ProductIDs, &p.CategoryIDs, &usageCount,
	}
	err := row.Scan(append(dest, extra...)...)

	p.Type = promotion.Type(kind)
	p.DiscountType = promotion.DiscountType(discountType)
	p.Discount = discount
	p.StartDate = startDate.UTC()
	p.EndDate = endDate.UTC()
	p.MaxDiscount = fromNullDecimal(maxDiscount)
	p.MinPurchase = fromNullDecimal(minPurchase)
	p.UsageLimit = fromNullInt(usageLimit)
	p.UsageLimitPerUser = fromNullInt(usageLimitPerUser)
	p.UsageCount = int(usageCount)
	return p, err
}

func nullDecimal(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

func fromNullDecimal(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func nullInt(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func fromNullInt(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
