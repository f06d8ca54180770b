package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/auth"
	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/storage/postgres"
)

type options struct {
	databaseURL string
	catalogFile string
	apiKey      string
	pepper      string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "db/seed/catalog.json", "path to seed catalog JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&opts.pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		lg.Fatal("API key is required: set --api-key or PROMO_SEED_API_KEY")
	}
	if opts.pepper == "" {
		opts.pepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data, err := os.ReadFile(opts.catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	seed, err := parseSeed(data)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "migrate")
	}

	catalog := postgres.NewCatalog(pool)
	for _, c := range seed.Categories {
		if err := catalog.UpsertCategory(ctx, c.ID, c.Name); err != nil {
			return err
		}
	}
	for _, p := range seed.Products {
		if err := catalog.UpsertProduct(ctx, p); err != nil {
			return err
		}
	}
	for _, u := range seed.Users {
		if err := catalog.UpsertUser(ctx, u); err != nil {
			return err
		}
	}
	lg.Info("Seeded catalog",
		zap.Int("categories", len(seed.Categories)),
		zap.Int("products", len(seed.Products)),
		zap.Int("users", len(seed.Users)),
	)

	admin := promotion.NewAdmin(postgres.NewPromotionRepository(pool), nil)
	var created, skipped int
	for _, in := range seed.Promotions {
		_, err := admin.Create(ctx, in)
		switch {
		case err == nil:
			created++
		case errors.Is(err, promotion.ErrCodeExists):
			skipped++
		default:
			return errors.Wrapf(err, "seed promotion %q", in.Code)
		}
	}
	lg.Info("Seeded promotions", zap.Int("created", created), zap.Int("existing", skipped))

	if err := catalog.UpsertAPIKey(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey(opts.apiKey, []byte(opts.pepper)),
		Name:    "Default API Key",
	}); err != nil {
		return err
	}
	lg.Info("Seeded API key")
	return nil
}
