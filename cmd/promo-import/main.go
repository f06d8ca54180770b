// Command promo-import bulk-loads promotions from gzip-compressed NDJSON
// files. Each line is one promotion in the admin create format.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-promotions/internal/domain/promotion"
	"github.com/xenking/kart-promotions/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		cfg         importConfig
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&cfg.Workers, "workers", 8, "concurrent inserts")
	flag.UintVar(&cfg.ExpectedCodes, "expected", 1_000_000, "expected number of codes, sizes the duplicate filter")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "parse and deduplicate without writing")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	files := flag.Args()
	if len(files) == 0 {
		lg.Fatal("usage: promo-import [flags] file.ndjson.gz ...")
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !cfg.DryRun {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, cfg); err != nil {
		lg.Fatal("Import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, cfg importConfig) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	var target creator = discard{}
	if !cfg.DryRun {
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		target = promotion.NewAdmin(postgres.NewPromotionRepository(pool), nil)
	}

	stats, err := newImporter(lg, target, cfg).Import(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Import completed",
		zap.Int64("created", stats.Created),
		zap.Int64("existing", stats.Existing),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("invalid", stats.Invalid),
		zap.Bool("dry_run", cfg.DryRun),
	)
	return nil
}

// discard accepts every promotion without storing it.
type discard struct{}

func (discard) Create(_ context.Context, _ promotion.Input) (*promotion.Promotion, error) {
	return nil, nil
}
