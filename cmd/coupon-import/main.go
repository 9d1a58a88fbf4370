package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		expected    uint
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected", 100_000, "expected coupons per file, sizes the duplicate filters")
	flag.BoolVar(&dryRun, "dry-run", false, "scan and validate only, do not write")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: coupon-import [flags] file.jsonl.gz...")
		flag.PrintDefaults()
	}
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, files, databaseURL, expected, dryRun); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
	lg.Info("Coupon import completed")
}

func run(ctx context.Context, lg *zap.Logger, files []string, databaseURL string, expected uint, dryRun bool) error {
	lg.Info("Scanning files", zap.Int("files", len(files)))

	scans, err := scanFiles(ctx, lg, files, expected)
	if err != nil {
		return errors.Wrap(err, "scan files")
	}

	res := merge(scans)
	for _, c := range res.Conflicts {
		lg.Warn("Coupon code defined in several files",
			zap.String("code", c.Code),
			zap.String("kept", c.Kept),
			zap.String("dropped", c.Dropped),
		)
	}
	lg.Info("Scan complete",
		zap.Int("coupons", len(res.Coupons)),
		zap.Int("conflicts", len(res.Conflicts)),
		zap.Int("rejected", res.Rejected),
	)

	if dryRun || len(res.Coupons) == 0 {
		return nil
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return write(ctx, lg, postgres.NewCouponRepository(pool), res.Coupons)
}

type upserter interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

func write(ctx context.Context, lg *zap.Logger, repo upserter, coupons []coupon.Coupon) error {
	lg.Info("Writing coupons", zap.Int("count", len(coupons)))

	for i := range coupons {
		if err := repo.Upsert(ctx, &coupons[i]); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", coupons[i].Code)
		}
		if n := i + 1; n%1000 == 0 || n == len(coupons) {
			lg.Info("Write progress", zap.Int("written", n), zap.Int("total", len(coupons)))
		}
	}
	return nil
}
