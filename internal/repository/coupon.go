package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokolink/internal/domain/coupon"
)

const getCouponByCodeSQL = `SELECT id, seller_id, code, discount_type, discount_value,
	min_purchase, max_discount, usage_limit, usage_count, product_ids, status, starts_at, ends_at
	FROM coupons WHERE seller_id = $1 AND code = UPPER($2)`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a seller's coupon by its code (case-insensitive).
// Status and validity window are the evaluator's concern; only absence
// maps to coupon.ErrNotFound here.
func (r *CouponRepository) FindByCode(ctx context.Context, sellerID, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, sellerID, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		status       string
		value        decimal.Decimal
		minPurchase  *decimal.Decimal
		maxDiscount  *decimal.Decimal
		usageLimit   *int32
		usageCount   int32
		startsAt     time.Time
		endsAt       time.Time
	)
	err := row.Scan(
		&c.ID, &c.SellerID, &c.Code, &discountType, &value,
		&minPurchase, &maxDiscount, &usageLimit, &usageCount,
		&c.ProductIDs, &status, &startsAt, &endsAt,
	)
	c.Type = coupon.Type(discountType)
	c.Status = coupon.Status(status)
	c.Value = value
	c.MinPurchase = minPurchase
	c.MaxDiscount = maxDiscount
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	c.UsageCount = int(usageCount)
	c.StartsAt = startsAt
	c.EndsAt = endsAt
	return c, err
}
