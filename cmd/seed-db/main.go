// Command seed-db applies migrations and loads sellers, products,
// variants, and coupons from a JSON fixture.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokolink/internal/repository"
)

type seedFile struct {
	Sellers  []sellerJSON  `json:"sellers"`
	Products []productJSON `json:"products"`
	Coupons  []couponJSON  `json:"coupons"`
}

type sellerJSON struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Phone string `json:"phone"`
}

type productJSON struct {
	ID       string          `json:"id"`
	SellerID string          `json:"sellerId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock"`
	IsActive bool            `json:"isActive"`
	Variants []variantJSON   `json:"variants,omitempty"`
}

type variantJSON struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock int              `json:"stock"`
}

type couponJSON struct {
	ID          string           `json:"id"`
	SellerID    string           `json:"sellerId"`
	Code        string           `json:"code"`
	Type        string           `json:"type"`
	Value       decimal.Decimal  `json:"value"`
	MinPurchase *decimal.Decimal `json:"minPurchase,omitempty"`
	MaxDiscount *decimal.Decimal `json:"maxDiscount,omitempty"`
	UsageLimit  *int             `json:"usageLimit,omitempty"`
	ProductIDs  []string         `json:"productIds,omitempty"`
	Status      string           `json:"status"`
	StartsAt    time.Time        `json:"startsAt"`
	EndsAt      time.Time        `json:"endsAt"`
}

const (
	upsertSellerSQL = `INSERT INTO sellers (id, name, slug, phone) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, slug = $3, phone = $4`

	upsertProductSQL = `INSERT INTO products (id, seller_id, name, price, stock, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET name = $3, price = $4, stock = $5, is_active = $6`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $3, price = $4, stock = $5`

	upsertCouponSQL = `INSERT INTO coupons (id, seller_id, code, discount_type, discount_value,
		min_purchase, max_discount, usage_limit, product_ids, status, starts_at, ends_at)
		VALUES ($1, $2, UPPER($3), $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET discount_value = $5, min_purchase = $6,
			max_discount = $7, usage_limit = $8, product_ids = $9, status = $10,
			starts_at = $11, ends_at = $12`
)

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedSellers(ctx, pool, seed.Sellers); err != nil {
		return errors.Wrap(err, "seed sellers")
	}
	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedSellers(ctx context.Context, pool *pgxpool.Pool, sellers []sellerJSON) error {
	slog.Info("upserting sellers", slog.Int("count", len(sellers)))

	for _, s := range sellers {
		if _, err := pool.Exec(ctx, upsertSellerSQL, s.ID, s.Name, s.Slug, s.Phone); err != nil {
			return errors.Wrapf(err, "upsert seller %s", s.ID)
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL, p.ID, p.SellerID, p.Name, p.Price, p.Stock, p.IsActive)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, v := range p.Variants {
			if _, err := pool.Exec(ctx, upsertVariantSQL, v.ID, p.ID, v.Name, v.Price, v.Stock); err != nil {
				return errors.Wrapf(err, "upsert variant %s", v.ID)
			}
		}

		slog.Info("upserted product",
			slog.String("id", p.ID),
			slog.String("name", p.Name),
			slog.Int("variants", len(p.Variants)),
		)
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		if c.ProductIDs == nil {
			c.ProductIDs = []string{}
		}
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.ID, c.SellerID, c.Code, c.Type, c.Value,
			c.MinPurchase, c.MaxDiscount, c.UsageLimit, c.ProductIDs,
			c.Status, c.StartsAt, c.EndsAt,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code), slog.String("seller", c.SellerID))
	}
	return nil
}
