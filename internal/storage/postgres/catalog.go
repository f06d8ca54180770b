package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-promotions/internal/domain/auth"
	"github.com/xenking/kart-promotions/internal/domain/product"
	"github.com/xenking/kart-promotions/internal/domain/user"
)

const (
	upsertCategorySQL = `INSERT INTO categories (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertProductSQL = `INSERT INTO products (id, name, price, category_id) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
		category_id = EXCLUDED.category_id`

	upsertUserSQL = `INSERT INTO users (id, role) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name,
		scopes = EXCLUDED.scopes, active = TRUE`
)

// Catalog writes the reference data the promotion engine reads: categories,
// products, users and API keys. It backs seeding and tests.
type Catalog struct {
	pool *pgxpool.Pool
}

// NewCatalog returns a Catalog that uses the given pool.
func NewCatalog(pool *pgxpool.Pool) *Catalog {
	return &Catalog{pool: pool}
}

// UpsertCategory inserts or renames a category.
func (c *Catalog) UpsertCategory(ctx context.Context, id, name string) error {
	if _, err := conn(ctx, c.pool).Exec(ctx, upsertCategorySQL, id, name); err != nil {
		return fmt.Errorf("upserting category %q: %w", id, err)
	}
	return nil
}

// UpsertProduct inserts or updates a product.
func (c *Catalog) UpsertProduct(ctx context.Context, p product.Product) error {
	if _, err := conn(ctx, c.pool).Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.CategoryID); err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// UpsertUser inserts or updates a user.
func (c *Catalog) UpsertUser(ctx context.Context, u user.User) error {
	if _, err := conn(ctx, c.pool).Exec(ctx, upsertUserSQL, u.ID, u.Role); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.ID, err)
	}
	return nil
}

// UpsertAPIKey stores an API key by hash and reactivates it.
func (c *Catalog) UpsertAPIKey(ctx context.Context, k auth.APIKeyInfo) error {
	scopes := k.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	if _, err := conn(ctx, c.pool).Exec(ctx, upsertAPIKeySQL, k.ID, k.KeyHash, k.Name, scopes); err != nil {
		return fmt.Errorf("upserting api key %q: %w", k.ID, err)
	}
	return nil
}
