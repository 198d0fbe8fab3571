// Package checkout implements the order commit pipeline: snapshot read,
// pricing, coupon evaluation, order numbering, the atomic commit, and
// the post-commit notification.
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/tokolink/internal/domain/catalog"
	"github.com/xenking/tokolink/internal/domain/coupon"
	"github.com/xenking/tokolink/internal/domain/order"
	"github.com/xenking/tokolink/internal/notify"
)

// Sentinel errors for cart validation.
var ErrEmptyItems = errors.New("items required")

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Cart is the input to both Preview and Commit.
type Cart struct {
	SellerID   string
	Items      []LineItemRequest
	CouponCode string
	Buyer      order.Buyer
}

// Summary is the priced view of a cart shared by preview and commit
// responses.
type Summary struct {
	Items      []PricedLineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	CouponCode string
}

// PreviewResult is the side-effect-free pipeline output.
type PreviewResult struct {
	Summary Summary
	Message string
	Link    string
}

// CommitResult is the output of a committed order.
type CommitResult struct {
	Order   *order.Order
	Summary Summary
	Message string
	Link    string
}

// Config holds tunables for the pipeline.
type Config struct {
	// StorefrontBaseURL is the base for seller deep links in order
	// messages.
	StorefrontBaseURL string
	// CommitTimeout bounds the whole commit transaction.
	CommitTimeout time.Duration
	// DispatchTimeout bounds the post-commit notification attempt.
	DispatchTimeout time.Duration
}

func (c *Config) setDefaults() {
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 30 * time.Second
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 5 * time.Second
	}
}

// Service runs the order commit pipeline. Stages before the commit are
// pure reads; all cross-request consistency is delegated to the commit
// transaction's conditional writes.
type Service struct {
	catalog    catalog.Repository
	coupons    *coupon.Evaluator
	orders     order.Repository
	numbers    order.NumberGenerator
	dispatcher notify.Dispatcher
	cfg        Config
}

// NewService creates the pipeline service with its collaborators.
func NewService(
	cfg Config,
	catalogRepo catalog.Repository,
	coupons *coupon.Evaluator,
	orders order.Repository,
	numbers order.NumberGenerator,
	dispatcher notify.Dispatcher,
) *Service {
	cfg.setDefaults()
	return &Service{
		catalog:    catalogRepo,
		coupons:    coupons,
		orders:     orders,
		numbers:    numbers,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

// evaluation carries the read-only pipeline stages' output into commit
// or preview composition.
type evaluation struct {
	seller   *catalog.Seller
	priced   []PricedLineItem
	summary  Summary
	couponID string
}

// evaluate runs snapshot read, pricing, and coupon evaluation. No side
// effects.
func (s *Service) evaluate(ctx context.Context, cart Cart) (*evaluation, error) {
	if len(cart.Items) == 0 {
		return nil, ErrEmptyItems
	}

	seen := make(map[string]struct{}, len(cart.Items))
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	seller, err := s.catalog.Seller(ctx, cart.SellerID)
	if err != nil {
		return nil, errors.Wrap(err, "load seller")
	}

	snap, err := s.catalog.Snapshot(ctx, cart.SellerID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "load catalog snapshot")
	}
	if snap.Len() != len(ids) {
		for _, id := range ids {
			if _, ok := snap.Product(id); !ok {
				return nil, &catalog.ProductUnavailableError{ProductID: id}
			}
		}
	}

	priced, subtotal, err := PriceCart(snap, cart.Items)
	if err != nil {
		return nil, err
	}

	ev := &evaluation{
		seller: seller,
		priced: priced,
		summary: Summary{
			Items:    priced,
			Subtotal: subtotal,
			Discount: decimal.Zero,
			Total:    subtotal,
		},
	}

	if cart.CouponCode != "" {
		res, err := s.coupons.Evaluate(ctx, cart.SellerID, cart.CouponCode, subtotal, ids)
		if err != nil {
			return nil, err
		}
		ev.couponID = res.Coupon.ID
		ev.summary.CouponCode = res.Coupon.Code
		ev.summary.Discount = res.Discount
		ev.summary.Total = subtotal.Sub(res.Discount).Round(2)
	}

	return ev, nil
}

// Preview runs the read-only stages and composes the order message
// without writing anything. Safe to retry.
func (s *Service) Preview(ctx context.Context, cart Cart) (*PreviewResult, error) {
	ev, err := s.evaluate(ctx, cart)
	if err != nil {
		return nil, err
	}

	link := StorefrontLink(s.cfg.StorefrontBaseURL, ev.seller.Slug)
	return &PreviewResult{
		Summary: ev.summary,
		Message: ComposeMessage(ev.seller, "", ev.summary, link),
		Link:    link,
	}, nil
}

// Commit runs the full pipeline. The order becomes real at the moment
// the commit transaction succeeds; the notification afterwards is best
// effort and never fails the order.
func (s *Service) Commit(ctx context.Context, cart Cart) (*CommitResult, error) {
	ev, err := s.evaluate(ctx, cart)
	if err != nil {
		return nil, err
	}

	number, err := s.numbers.Next(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]order.LineItem, len(ev.priced))
	for i, p := range ev.priced {
		items[i] = order.LineItem{
			ProductID:    p.ProductID,
			VariantID:    p.VariantID,
			Name:         p.Name,
			UnitPrice:    p.UnitPrice,
			Quantity:     p.Quantity,
			LineSubtotal: p.LineSubtotal,
		}
	}

	o := &order.Order{
		ID:            uuid.New().String(),
		Number:        number,
		SellerID:      cart.SellerID,
		Buyer:         cart.Buyer,
		Items:         items,
		Subtotal:      ev.summary.Subtotal,
		Discount:      ev.summary.Discount,
		Total:         ev.summary.Total,
		CouponID:      ev.couponID,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
	}

	// The commit must fully apply or fully roll back even if the caller
	// disconnects, so it runs under its own bounded deadline.
	commitCtx, cancel := context.WithTimeout(ctx, s.cfg.CommitTimeout)
	defer cancel()

	if err := s.orders.Commit(commitCtx, o); err != nil {
		return nil, err
	}

	link := StorefrontLink(s.cfg.StorefrontBaseURL, ev.seller.Slug)
	message := ComposeMessage(ev.seller, o.Number, ev.summary, link)

	s.dispatchAsync(ctx, notify.Notification{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		SellerID:    o.SellerID,
		Message:     message,
		Link:        link,
	})

	return &CommitResult{
		Order:   o,
		Summary: ev.summary,
		Message: message,
		Link:    link,
	}, nil
}

// dispatchAsync fires the notification without blocking the caller.
// Failures are logged, never propagated: the order already exists.
func (s *Service) dispatchAsync(ctx context.Context, n notify.Notification) {
	lg := zctx.From(ctx)
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DispatchTimeout)

	go func() {
		defer cancel()
		if err := s.dispatcher.Dispatch(dctx, n); err != nil {
			lg.Warn("order notification dispatch failed",
				zap.String("order_id", n.OrderID),
				zap.Error(err),
			)
		}
	}()
}
