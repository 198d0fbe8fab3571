package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tokolink/internal/domain/catalog"
	"github.com/xenking/tokolink/internal/domain/checkout"
	"github.com/xenking/tokolink/internal/domain/coupon"
	"github.com/xenking/tokolink/internal/domain/order"
)

type stubCheckout struct {
	preview    *checkout.PreviewResult
	commit     *checkout.CommitResult
	err        error
	lastCart   checkout.Cart
	commitHits int
}

func (s *stubCheckout) Preview(_ context.Context, cart checkout.Cart) (*checkout.PreviewResult, error) {
	s.lastCart = cart
	return s.preview, s.err
}

func (s *stubCheckout) Commit(_ context.Context, cart checkout.Cart) (*checkout.CommitResult, error) {
	s.lastCart = cart
	s.commitHits++
	return s.commit, s.err
}

func newMux(svc CheckoutService) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(svc).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

const validBody = `{
	"sellerId": "seller-1",
	"items": [{"productId": "p-1", "quantity": 2}],
	"couponCode": "SAVE10",
	"buyer": {"name": "Budi", "phone": "+628111", "address": "Jl. Merdeka 1"}
}`

func sampleSummary() checkout.Summary {
	return checkout.Summary{
		Items: []checkout.PricedLineItem{{
			ProductID:    "p-1",
			Name:         "Arabica Beans",
			UnitPrice:    decimal.RequireFromString("10.00"),
			Quantity:     2,
			LineSubtotal: decimal.RequireFromString("20.00"),
		}},
		Subtotal:   decimal.RequireFromString("20.00"),
		Discount:   decimal.RequireFromString("2.00"),
		Total:      decimal.RequireFromString("18.00"),
		CouponCode: "SAVE10",
	}
}

func TestPreviewOrder(t *testing.T) {
	svc := &stubCheckout{preview: &checkout.PreviewResult{
		Summary: sampleSummary(),
		Message: "Store: Warung Kopi",
		Link:    "https://toko.example/store/warung-kopi",
	}}
	rec := doRequest(t, newMux(svc), "/api/orders/preview", validBody)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Summary struct {
			Subtotal   json.Number `json:"subtotal"`
			Discount   json.Number `json:"discount"`
			Total      json.Number `json:"total"`
			CouponCode string      `json:"couponCode"`
		} `json:"summary"`
		Message string `json:"message"`
		Link    string `json:"link"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "20.00", resp.Summary.Subtotal.String())
	assert.Equal(t, "18.00", resp.Summary.Total.String())
	assert.Equal(t, "SAVE10", resp.Summary.CouponCode)
	assert.Equal(t, "https://toko.example/store/warung-kopi", resp.Link)

	assert.Equal(t, "seller-1", svc.lastCart.SellerID)
	assert.Equal(t, "SAVE10", svc.lastCart.CouponCode)
	assert.Equal(t, "Budi", svc.lastCart.Buyer.Name)
	require.Len(t, svc.lastCart.Items, 1)
	assert.Equal(t, 2, svc.lastCart.Items[0].Quantity)
}

func TestCommitOrder(t *testing.T) {
	svc := &stubCheckout{commit: &checkout.CommitResult{
		Order: &order.Order{
			ID:            "o-1",
			Number:        "ORD-20260615-000000000042",
			SellerID:      "seller-1",
			Status:        order.StatusPending,
			PaymentStatus: order.PaymentPending,
			Subtotal:      decimal.RequireFromString("20.00"),
			Discount:      decimal.RequireFromString("2.00"),
			Total:         decimal.RequireFromString("18.00"),
		},
		Summary: sampleSummary(),
		Message: "Order ORD-20260615-000000000042",
		Link:    "https://toko.example/store/warung-kopi",
	}}
	rec := doRequest(t, newMux(svc), "/api/orders", validBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, svc.commitHits)

	var resp struct {
		Order struct {
			OrderNumber   string `json:"orderNumber"`
			Status        string `json:"status"`
			PaymentStatus string `json:"paymentStatus"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ORD-20260615-000000000042", resp.Order.OrderNumber)
	assert.Equal(t, "pending", resp.Order.Status)
	assert.Equal(t, "pending", resp.Order.PaymentStatus)
}

func TestMalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing seller", `{"items": [{"productId": "p-1", "quantity": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckout{}
			rec := doRequest(t, newMux(svc), "/api/orders", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Zero(t, svc.commitHits)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"empty items", checkout.ErrEmptyItems, http.StatusBadRequest},
		{"invalid quantity", &checkout.InvalidQuantityError{ProductID: "p-1"}, http.StatusUnprocessableEntity},
		{"seller not found", catalog.ErrSellerNotFound, http.StatusUnprocessableEntity},
		{"product unavailable", &catalog.ProductUnavailableError{ProductID: "p-1"}, http.StatusUnprocessableEntity},
		{"variant not found", &catalog.VariantNotFoundError{ProductID: "p-1", VariantID: "v-1"}, http.StatusUnprocessableEntity},
		{"coupon not found", coupon.ErrNotFound, http.StatusUnprocessableEntity},
		{"min purchase", coupon.ErrMinPurchase, http.StatusUnprocessableEntity},
		{"scope mismatch", coupon.ErrScopeMismatch, http.StatusUnprocessableEntity},
		{"coupon exhausted", coupon.ErrExhausted, http.StatusConflict},
		{"insufficient stock", &catalog.InsufficientStockError{ProductID: "p-1", Requested: 2, Available: 1}, http.StatusConflict},
		{"number space exhausted", order.ErrNumberSpaceExhausted, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubCheckout{err: tt.err}
			rec := doRequest(t, newMux(svc), "/api/orders", validBody)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestWrappedErrorsStillMap(t *testing.T) {
	svc := &stubCheckout{err: errors.Wrap(coupon.ErrExhausted, "commit order")}
	rec := doRequest(t, newMux(svc), "/api/orders", validBody)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTransientErrorIsRetryable(t *testing.T) {
	svc := &stubCheckout{err: &order.TransientError{Err: errors.New("pool timeout")}}
	rec := doRequest(t, newMux(svc), "/api/orders", validBody)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "pool timeout")
}

func TestInternalErrorMasksDetails(t *testing.T) {
	svc := &stubCheckout{err: errors.New("pq: secret table missing")}
	rec := doRequest(t, newMux(svc), "/api/orders", validBody)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
