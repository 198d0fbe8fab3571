// Package handler exposes the checkout pipeline over HTTP.
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tokolink/internal/domain/catalog"
	"github.com/xenking/tokolink/internal/domain/checkout"
	"github.com/xenking/tokolink/internal/domain/coupon"
	"github.com/xenking/tokolink/internal/domain/order"
)

// CheckoutService is the slice of checkout.Service the handlers need.
type CheckoutService interface {
	Preview(ctx context.Context, cart checkout.Cart) (*checkout.PreviewResult, error)
	Commit(ctx context.Context, cart checkout.Cart) (*checkout.CommitResult, error)
}

// Handler serves the order endpoints.
type Handler struct {
	checkout CheckoutService
}

// NewHandler constructs a Handler.
func NewHandler(svc CheckoutService) *Handler {
	return &Handler{checkout: svc}
}

// Register mounts the order routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orders/preview", h.PreviewOrder)
	mux.HandleFunc("POST /api/orders", h.CommitOrder)
}

// mapError converts pipeline errors to an HTTP status. Client errors
// are terminal for the given cart; transient storage errors are
// retryable; number-space exhaustion is an operator problem.
func mapError(err error) (status int, retryable bool) {
	switch {
	case errors.Is(err, checkout.ErrEmptyItems):
		return http.StatusBadRequest, false
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, coupon.ErrMinPurchase),
		errors.Is(err, coupon.ErrScopeMismatch),
		errors.Is(err, catalog.ErrSellerNotFound):
		return http.StatusUnprocessableEntity, false
	case errors.Is(err, coupon.ErrExhausted):
		return http.StatusConflict, false
	case errors.Is(err, order.ErrNumberSpaceExhausted):
		return http.StatusInternalServerError, false
	}

	var (
		iqErr  *checkout.InvalidQuantityError
		puErr  *catalog.ProductUnavailableError
		vnfErr *catalog.VariantNotFoundError
		isErr  *catalog.InsufficientStockError
		trErr  *order.TransientError
	)
	switch {
	case errors.As(err, &iqErr), errors.As(err, &puErr), errors.As(err, &vnfErr):
		return http.StatusUnprocessableEntity, false
	case errors.As(err, &isErr):
		return http.StatusConflict, false
	case errors.As(err, &trErr):
		return http.StatusServiceUnavailable, true
	}
	return http.StatusInternalServerError, false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, retryable := mapError(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("order request failed", zap.Error(err))
		if !errors.Is(err, order.ErrNumberSpaceExhausted) {
			message = "internal server error"
		}
	}
	if retryable {
		w.Header().Set("Retry-After", "1")
		message = "temporary storage failure, retry the request"
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()

	writeJSON(w, status, e)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	buf := e.Bytes()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}
