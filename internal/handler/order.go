package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokolink/internal/domain/checkout"
	"github.com/xenking/tokolink/internal/domain/order"
)

// orderRequest is the wire format shared by preview and commit.
type orderRequest struct {
	SellerID   string             `json:"sellerId"`
	Items      []orderItemRequest `json:"items"`
	CouponCode string             `json:"couponCode,omitempty"`
	Buyer      buyerRequest       `json:"buyer"`
}

type orderItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

type buyerRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address,omitempty"`
}

func decodeCart(r *http.Request) (checkout.Cart, bool) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return checkout.Cart{}, false
	}
	if req.SellerID == "" {
		return checkout.Cart{}, false
	}

	items := make([]checkout.LineItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = checkout.LineItemRequest{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
		}
	}

	return checkout.Cart{
		SellerID:   req.SellerID,
		Items:      items,
		CouponCode: req.CouponCode,
		Buyer: order.Buyer{
			Name:    req.Buyer.Name,
			Phone:   req.Buyer.Phone,
			Address: req.Buyer.Address,
		},
	}, true
}

// PreviewOrder prices the cart and composes the order message without
// writing anything. Safe to retry.
func (h *Handler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	cart, ok := decodeCart(r)
	if !ok {
		writeBadRequest(w)
		return
	}

	res, err := h.checkout.Preview(r.Context(), cart)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	encodeSummary(e, res.Summary)
	e.FieldStart("message")
	e.Str(res.Message)
	e.FieldStart("link")
	e.Str(res.Link)
	e.ObjEnd()

	writeJSON(w, http.StatusOK, e)
}

// CommitOrder runs the full pipeline and returns the committed order.
func (h *Handler) CommitOrder(w http.ResponseWriter, r *http.Request) {
	cart, ok := decodeCart(r)
	if !ok {
		writeBadRequest(w)
		return
	}

	res, err := h.checkout.Commit(r.Context(), cart)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("order")
	encodeOrder(e, res.Order)
	encodeSummary(e, res.Summary)
	e.FieldStart("message")
	e.Str(res.Message)
	e.FieldStart("link")
	e.Str(res.Link)
	e.ObjEnd()

	writeJSON(w, http.StatusCreated, e)
}

func writeBadRequest(w http.ResponseWriter) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusBadRequest)
	e.FieldStart("message")
	e.Str("malformed order request")
	e.ObjEnd()
	writeJSON(w, http.StatusBadRequest, e)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("orderNumber")
	e.Str(o.Number)
	e.FieldStart("sellerId")
	e.Str(o.SellerID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("paymentStatus")
	e.Str(string(o.PaymentStatus))
	e.FieldStart("subtotal")
	encodeMoney(e, o.Subtotal)
	e.FieldStart("discount")
	encodeMoney(e, o.Discount)
	e.FieldStart("total")
	encodeMoney(e, o.Total)
	e.ObjEnd()
}

func encodeSummary(e *jx.Encoder, s checkout.Summary) {
	e.FieldStart("summary")
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range s.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		if item.VariantID != "" {
			e.FieldStart("variantId")
			e.Str(item.VariantID)
		}
		e.FieldStart("name")
		e.Str(item.Name)
		e.FieldStart("unitPrice")
		encodeMoney(e, item.UnitPrice)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("lineSubtotal")
		encodeMoney(e, item.LineSubtotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	encodeMoney(e, s.Subtotal)
	e.FieldStart("discount")
	encodeMoney(e, s.Discount)
	e.FieldStart("total")
	encodeMoney(e, s.Total)
	if s.CouponCode != "" {
		e.FieldStart("couponCode")
		e.Str(s.CouponCode)
	}
	e.ObjEnd()
}

// encodeMoney writes a decimal as a JSON number with two decimal
// places.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.RawStr(d.StringFixed(2))
}
