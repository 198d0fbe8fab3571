// Package coupon implements discount code rules and their evaluation
// against a cart.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the subtotal, optionally
	// capped by MaxDiscount.
	TypePercentage Type = "percentage"
	// TypeFixed discounts a fixed amount, capped at the subtotal.
	TypeFixed Type = "fixed"
)

// Status is the lifecycle state of a coupon.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusExpired  Status = "expired"
)

var (
	// ErrNotFound is returned when no matching coupon exists for the
	// seller, or the coupon is inactive or outside its validity window.
	ErrNotFound = errors.New("coupon not found")
	// ErrExhausted is returned when the usage limit has been reached,
	// either at validation time or by a concurrent commit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrMinPurchase is returned when the subtotal is below the
	// coupon's minimum purchase amount.
	ErrMinPurchase = errors.New("minimum purchase not met")
	// ErrScopeMismatch is returned when the coupon is scoped to
	// specific products and the cart contains none of them.
	ErrScopeMismatch = errors.New("coupon does not apply to any product in the cart")
)

// Coupon is a seller-owned discount code. UsageCount is mutated only by
// the order commit transaction.
type Coupon struct {
	ID          string
	SellerID    string
	Code        string
	Type        Type
	Value       decimal.Decimal
	MinPurchase *decimal.Decimal
	MaxDiscount *decimal.Decimal
	UsageLimit  *int
	UsageCount  int
	ProductIDs  []string
	Status      Status
	StartsAt    time.Time
	EndsAt      time.Time
}

// Repository provides coupon lookup scoped to a seller.
type Repository interface {
	// FindByCode looks up a coupon by (seller, code). The match is
	// case-insensitive; codes are stored upper-cased. Returns
	// ErrNotFound when no coupon matches.
	FindByCode(ctx context.Context, sellerID, code string) (*Coupon, error)
}

// Normalize returns the canonical (stored) form of a coupon code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
