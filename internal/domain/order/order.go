// Package order defines the persisted order model and the commit
// contract the checkout pipeline relies on.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. The pipeline only ever creates
// orders in StatusPending; later transitions belong to order management.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks payment reconciliation, owned by an external
// collaborator after commit.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Buyer holds the contact fields captured with an order.
type Buyer struct {
	Name    string
	Phone   string
	Address string
}

// LineItem is a denormalized snapshot of a purchased item: name and
// unit price are copied at commit time so the order stays historically
// accurate when the catalog changes.
type LineItem struct {
	ProductID    string
	VariantID    string
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// Order is immutable once committed except for status fields.
type Order struct {
	ID            string
	Number        string
	SellerID      string
	Buyer         Buyer
	Items         []LineItem
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	CouponID      string
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
}

// Repository is the write side of the pipeline. Commit must be atomic:
// order and items are inserted, the coupon usage counter is incremented
// only if the limit still holds, and every stock counter is decremented
// only if it stays non-negative. Any guard failure rolls the whole
// transaction back with the matching domain error (coupon.ErrExhausted,
// catalog.InsufficientStockError).
type Repository interface {
	Commit(ctx context.Context, o *Order) error
	// NumberExists reports whether an order already uses the number.
	NumberExists(ctx context.Context, number string) (bool, error)
	// NextSequence returns the next value of the global order counter.
	NextSequence(ctx context.Context) (int64, error)
}

// TransientError marks an infrastructure failure (transaction timeout,
// pool exhaustion) where retrying the whole commit is safe because the
// transaction applied nothing.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return "transient storage error: " + e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}
