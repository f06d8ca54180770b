package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
)

const (
	countUsagesSQL     = `SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = $1`
	countUserUsagesSQL = `SELECT COUNT(*) FROM promotion_usages WHERE promotion_id = $1 AND user_id = $2`
	insertUsageSQL     = `INSERT INTO promotion_usages (id, promotion_id, user_id, order_id, used_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`
)

var _ promotion.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements promotion.UsageRepository backed by PostgreSQL.
// Counts are served by the (promotion_id, user_id) index.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// Count returns the number of recorded usages of a promotion.
func (r *UsageRepository) Count(ctx context.Context, promotionID string) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countUsagesSQL, promotionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usages of %q: %w", promotionID, err)
	}
	return int(n), nil
}

// CountByUser returns the number of usages of a promotion by one user.
func (r *UsageRepository) CountByUser(ctx context.Context, promotionID, userID string) (int, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countUserUsagesSQL, promotionID, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting usages of %q by %q: %w", promotionID, userID, err)
	}
	return int(n), nil
}

// Create appends a usage row. Returns promotion.ErrPromotionNotFound when
// the promotion was deleted concurrently.
func (r *UsageRepository) Create(ctx context.Context, u *promotion.Usage) error {
	_, err := conn(ctx, r.pool).Exec(ctx, insertUsageSQL,
		u.ID, u.PromotionID, u.UserID, u.OrderID, u.UsedAt,
	)
	if err != nil {
		if hasCode(err, codeForeignKeyViolation) {
			return promotion.ErrPromotionNotFound
		}
		return fmt.Errorf("creating usage of %q: %w", u.PromotionID, err)
	}
	return nil
}
