package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/domain/auth"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "optional JSON array of products replacing the built-in catalog")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or SWAG_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SWAG_API_KEY_PEPPER env)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}
	if apiKey == "" {
		apiKey = os.Getenv("SWAG_SEED_API_KEY")
	}
	if apiKey == "" {
		lg.Fatal("API key is required: set --api-key or SWAG_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SWAG_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	s := &seeder{lg: lg}
	if err := s.run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

type seeder struct {
	lg       *zap.Logger
	products *postgres.ProductRepository
	coupons  *postgres.CouponRepository
	stock    *postgres.StockRepository
	keys     *postgres.APIKeyRepository
}

func (s *seeder) run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	s.lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	s.lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	s.products = postgres.NewProductRepository(pool)
	s.coupons = postgres.NewCouponRepository(pool)
	s.stock = postgres.NewStockRepository(pool)
	s.keys = postgres.NewAPIKeyRepository(pool)

	catalog := defaultCatalog()
	if productsFile != "" {
		if catalog, err = readCatalog(productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}
	if err := s.seedProducts(ctx, catalog); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := s.seedCoupons(ctx); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := s.seedAPIKey(ctx, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func readCatalog(path string) ([]product.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var products []product.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}

// seedProducts upserts the catalog. Stock levels are reached through seed
// adjustments so the stock log explains every unit.
func (s *seeder) seedProducts(ctx context.Context, catalog []product.Product) error {
	s.lg.Info("Upserting products", zap.Int("count", len(catalog)))

	for i := range catalog {
		p := &catalog[i]
		if err := product.Validate(p); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
		target := p.Stock

		current := 0
		existing, err := s.products.GetByID(ctx, p.ID)
		switch {
		case err == nil:
			current = existing.Stock
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "get product %s", p.ID)
		}

		p.Stock = current
		if err := s.products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		if delta := target - current; delta != 0 {
			if _, err := s.stock.Adjust(ctx, p.ID, delta, stock.ReasonSeed); err != nil {
				return errors.Wrapf(err, "seed stock of %s", p.ID)
			}
		}

		s.lg.Info("Upserted product",
			zap.String("id", p.ID),
			zap.String("name", p.Name),
			zap.Int("stock", target),
			zap.Int("tiers", len(p.PricingTiers)),
		)
	}
	return nil
}

func (s *seeder) seedCoupons(ctx context.Context) error {
	s.lg.Info("Seeding coupons")

	for _, c := range defaultCoupons() {
		if err := coupon.Validate(&c); err != nil {
			return errors.Wrapf(err, "coupon %s", c.Code)
		}
		if err := s.coupons.Upsert(ctx, &c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}
		s.lg.Info("Upserted coupon", zap.String("code", c.Code), zap.String("description", c.Description))
	}
	return nil
}

func (s *seeder) seedAPIKey(ctx context.Context, apiKey, pepper string) error {
	info := &auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.Hash([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := s.keys.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert admin API key")
	}
	s.lg.Info("Upserted API key", zap.String("id", info.ID), zap.Strings("scopes", info.Scopes))
	return nil
}

func tiers(pairs ...int64) []product.PricingTier {
	out := make([]product.PricingTier, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, product.PricingTier{
			MinQuantity:        int(pairs[i]),
			DiscountPercentage: decimal.NewFromInt(pairs[i+1]),
		})
	}
	return out
}

func defaultCatalog() []product.Product {
	price := decimal.RequireFromString
	return []product.Product{
		{
			ID: "classic-tee", Name: "Classic Logo Tee", Category: "Clothing",
			Description: "Soft cotton tee with the team logo.",
			Price:       price("24.99"), Stock: 120, Image: "classic-tee.png",
			PricingTiers: tiers(5, 10, 10, 15, 25, 20),
		},
		{
			ID: "zip-hoodie", Name: "Zip Hoodie", Category: "Clothing",
			Description: "Heavyweight fleece hoodie.",
			Price:       price("59.00"), Stock: 40, Image: "zip-hoodie.png",
			PricingTiers: tiers(3, 5, 10, 12),
		},
		{
			ID: "dad-cap", Name: "Dad Cap", Category: "Accessories",
			Description: "Embroidered six-panel cap.",
			Price:       price("19.50"), Stock: 75, Image: "dad-cap.png",
			PricingTiers: tiers(10, 10),
		},
		{
			ID: "enamel-mug", Name: "Enamel Mug", Category: "Accessories",
			Description: "Camp mug, 350 ml.",
			Price:       price("14.00"), Stock: 200, Image: "enamel-mug.png",
			PricingTiers: tiers(6, 8, 24, 18),
		},
		{
			ID: "sticker-pack", Name: "Sticker Pack", Category: "Stationery",
			Description: "Ten vinyl stickers.",
			Price:       price("6.00"), Stock: 500, Image: "sticker-pack.png",
			PricingTiers: tiers(10, 20, 50, 35),
		},
		{
			ID: "notebook", Name: "Dot Grid Notebook", Category: "Stationery",
			Description: "A5 notebook, 120 pages.",
			Price:       price("12.75"), Stock: 150, Image: "notebook.png",
		},
	}
}

func defaultCoupons() []coupon.Coupon {
	return []coupon.Coupon{
		{
			Code: "WELCOME10", Description: "10% off your first order",
			DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(10),
			FirstTimeOnly: true, Active: true,
		},
		{
			Code: "SAVE20", Description: "$20 off orders over $100",
			DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(20),
			MinOrderValue: decimal.NewFromInt(100), Active: true,
		},
		{
			Code: "CLOTHING15", Description: "15% off clothing",
			DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(15),
			TargetCategory: "Clothing", LimitPerUser: 2, Active: true,
		},
		{
			Code: "FLASH50", Description: "50% off, first 100 orders",
			DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(50),
			UsageLimit: 100, Active: true,
		},
	}
}
