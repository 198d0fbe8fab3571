// Package notify delivers best-effort order notifications. Dispatch
// failures are logged by the caller and never affect a committed order.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Notification is the payload sent after an order commits.
type Notification struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SellerID    string `json:"seller_id"`
	Message     string `json:"message"`
	Link        string `json:"link"`
}

// Dispatcher sends a notification to an external channel. Delivery is
// at-least-once-attempted; implementations must be safe for concurrent
// use.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the log. Used when no broker is
// configured.
type LogDispatcher struct{}

// Dispatch logs the notification and always succeeds.
func (LogDispatcher) Dispatch(ctx context.Context, n Notification) error {
	zctx.From(ctx).Info("order notification",
		zap.String("order_id", n.OrderID),
		zap.String("order_number", n.OrderNumber),
		zap.String("seller_id", n.SellerID),
	)
	return nil
}
