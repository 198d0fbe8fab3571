package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	coupons map[string]*Coupon
}

func (r *stubRepo) FindByCode(_ context.Context, sellerID, code string) (*Coupon, error) {
	c, ok := r.coupons[sellerID+"/"+code]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func newTestEvaluator(coupons ...*Coupon) *Evaluator {
	repo := &stubRepo{coupons: make(map[string]*Coupon)}
	for _, c := range coupons {
		repo.coupons[c.SellerID+"/"+c.Code] = c
	}
	e := NewEvaluator(repo)
	e.now = func() time.Time { return time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func moneyPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func activeCoupon(code string, typ Type, value string) *Coupon {
	return &Coupon{
		ID:       "c-" + code,
		SellerID: "seller-1",
		Code:     code,
		Type:     typ,
		Value:    money(value),
		Status:   StatusActive,
		StartsAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndsAt:   time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluatePercentage(t *testing.T) {
	e := newTestEvaluator(activeCoupon("SAVE10", TypePercentage, "10"))

	res, err := e.Evaluate(context.Background(), "seller-1", "SAVE10", money("20.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "2.00", res.Discount.StringFixed(2))
	assert.Equal(t, "SAVE10", res.Coupon.Code)
}

func TestEvaluateNormalizesCode(t *testing.T) {
	e := newTestEvaluator(activeCoupon("SAVE10", TypePercentage, "10"))

	res, err := e.Evaluate(context.Background(), "seller-1", "  save10 ", money("100.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Discount.StringFixed(2))
}

func TestEvaluatePercentageMaxDiscount(t *testing.T) {
	c := activeCoupon("BIG50", TypePercentage, "50")
	c.MaxDiscount = moneyPtr("25.00")
	e := newTestEvaluator(c)

	res, err := e.Evaluate(context.Background(), "seller-1", "BIG50", money("100.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "25.00", res.Discount.StringFixed(2))
}

func TestEvaluateFixedClampedToSubtotal(t *testing.T) {
	e := newTestEvaluator(activeCoupon("FLAT50", TypeFixed, "50"))

	res, err := e.Evaluate(context.Background(), "seller-1", "FLAT50", money("20.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "20.00", res.Discount.StringFixed(2))
}

func TestEvaluateUnknownCode(t *testing.T) {
	e := newTestEvaluator()

	_, err := e.Evaluate(context.Background(), "seller-1", "NOPE", money("20.00"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateWrongSeller(t *testing.T) {
	e := newTestEvaluator(activeCoupon("SAVE10", TypePercentage, "10"))

	_, err := e.Evaluate(context.Background(), "seller-2", "SAVE10", money("20.00"), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluateLifecycle(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Coupon)
	}{
		{"disabled", func(c *Coupon) { c.Status = StatusDisabled }},
		{"expired status", func(c *Coupon) { c.Status = StatusExpired }},
		{"not yet started", func(c *Coupon) {
			c.StartsAt = time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
		}},
		{"window passed", func(c *Coupon) {
			c.EndsAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon("SAVE10", TypePercentage, "10")
			tt.mutate(c)
			e := newTestEvaluator(c)

			_, err := e.Evaluate(context.Background(), "seller-1", "SAVE10", money("20.00"), nil)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestEvaluateUsageLimitReached(t *testing.T) {
	c := activeCoupon("ONCE", TypeFixed, "5")
	c.UsageLimit = intPtr(3)
	c.UsageCount = 3
	e := newTestEvaluator(c)

	_, err := e.Evaluate(context.Background(), "seller-1", "ONCE", money("20.00"), nil)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestEvaluateUsageLimitRemaining(t *testing.T) {
	c := activeCoupon("ONCE", TypeFixed, "5")
	c.UsageLimit = intPtr(3)
	c.UsageCount = 2
	e := newTestEvaluator(c)

	res, err := e.Evaluate(context.Background(), "seller-1", "ONCE", money("20.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "5.00", res.Discount.StringFixed(2))
}

func TestEvaluateMinPurchase(t *testing.T) {
	c := activeCoupon("MIN100", TypePercentage, "10")
	c.MinPurchase = moneyPtr("100.00")
	e := newTestEvaluator(c)

	_, err := e.Evaluate(context.Background(), "seller-1", "MIN100", money("99.99"), nil)
	assert.ErrorIs(t, err, ErrMinPurchase)

	res, err := e.Evaluate(context.Background(), "seller-1", "MIN100", money("100.00"), nil)
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Discount.StringFixed(2))
}

func TestEvaluateProductScope(t *testing.T) {
	c := activeCoupon("BEANS", TypePercentage, "5")
	c.ProductIDs = []string{"p-1", "p-2"}
	e := newTestEvaluator(c)

	_, err := e.Evaluate(context.Background(), "seller-1", "BEANS", money("50.00"), []string{"p-3"})
	assert.ErrorIs(t, err, ErrScopeMismatch)

	_, err = e.Evaluate(context.Background(), "seller-1", "BEANS", money("50.00"), []string{"p-3", "p-2"})
	assert.NoError(t, err)
}

func TestDiscountRounding(t *testing.T) {
	c := activeCoupon("THIRD", TypePercentage, "33.33")

	got := Discount(c, money("9.99"))
	assert.Equal(t, "3.33", got.StringFixed(2))
}

func TestDiscountNegativeValueFloorsAtZero(t *testing.T) {
	c := activeCoupon("NEG", TypeFixed, "-5")

	got := Discount(c, money("20.00"))
	assert.True(t, got.IsZero())
}

func TestDiscountUnknownTypeIsZero(t *testing.T) {
	c := activeCoupon("ODD", Type("free_shipping"), "10")

	got := Discount(c, money("20.00"))
	assert.True(t, got.IsZero())
}
