package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Result holds the outcome of a successful evaluation.
type Result struct {
	Coupon   *Coupon
	Discount decimal.Decimal
}

// Evaluator validates a coupon code against a cart and computes the
// discount. It is read-only: redemption (the usage_count increment)
// happens inside the order commit transaction, which re-checks the
// usage limit so that two concurrent commits cannot both consume the
// last use.
type Evaluator struct {
	repo Repository
	now  func() time.Time
}

// NewEvaluator creates an Evaluator backed by the given Repository.
func NewEvaluator(repo Repository) *Evaluator {
	return &Evaluator{repo: repo, now: time.Now}
}

// Evaluate looks up the coupon for (sellerID, code) and applies the
// eligibility rules in order: existence/status/window, usage cap,
// minimum purchase, product scope. On success it returns the coupon
// and the computed discount, already clamped to the subtotal.
func (e *Evaluator) Evaluate(ctx context.Context, sellerID, code string, subtotal decimal.Decimal, productIDs []string) (*Result, error) {
	c, err := e.repo.FindByCode(ctx, sellerID, Normalize(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	now := e.now()
	if c.Status != StatusActive || now.Before(c.StartsAt) || now.After(c.EndsAt) {
		return nil, ErrNotFound
	}

	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return nil, ErrExhausted
	}

	if c.MinPurchase != nil && subtotal.LessThan(*c.MinPurchase) {
		return nil, ErrMinPurchase
	}

	if len(c.ProductIDs) > 0 && !intersects(c.ProductIDs, productIDs) {
		return nil, ErrScopeMismatch
	}

	return &Result{
		Coupon:   c,
		Discount: Discount(c, subtotal),
	}, nil
}

// Discount computes the discount amount for the given coupon and
// subtotal. Percentage discounts are clamped to MaxDiscount when set;
// every discount is clamped to the subtotal so the total never goes
// negative.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var amount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		amount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil {
			amount = decimal.Min(amount, *c.MaxDiscount)
		}
	case TypeFixed:
		amount = c.Value
	default:
		amount = decimal.Zero
	}

	amount = decimal.Min(amount, subtotal)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2)
}

func intersects(scope, ids []string) bool {
	set := make(map[string]struct{}, len(scope))
	for _, id := range scope {
		set[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
