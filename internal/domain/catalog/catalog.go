// Package catalog defines the read-side product model the checkout
// pipeline prices against.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrSellerNotFound is returned when no seller exists for the given id.
var ErrSellerNotFound = errors.New("seller not found")

// Seller holds the storefront identity and contact fields used in order
// messages. Field order matches the sellers table columns.
type Seller struct {
	ID    string
	Name  string
	Slug  string
	Phone string
}

// Variant is a purchasable variation of a product. A nil Price means
// the variant sells at the product's base price.
type Variant struct {
	ID    string
	Name  string
	Price *decimal.Decimal
	Stock int
}

// Product is a seller's catalog entry with its variants attached.
type Product struct {
	ID       string
	SellerID string
	Name     string
	Price    decimal.Decimal
	Stock    int
	IsActive bool
	Variants []Variant
}

// Variant returns the variant with the given id, if present.
func (p *Product) Variant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Snapshot is a point-in-time read of the products a cart references.
// It is not a reservation: stock may change before commit, which is why
// the commit transaction re-validates every decrement.
type Snapshot struct {
	products map[string]*Product
}

// NewSnapshot indexes the given products by id.
func NewSnapshot(products []Product) *Snapshot {
	m := make(map[string]*Product, len(products))
	for i := range products {
		m[products[i].ID] = &products[i]
	}
	return &Snapshot{products: m}
}

// Product returns the snapshot entry for the given product id.
func (s *Snapshot) Product(id string) (*Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// Len returns the number of products in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.products)
}

// Repository provides read access to the catalog.
type Repository interface {
	// Seller loads seller contact data. Returns ErrSellerNotFound when
	// the seller does not exist.
	Seller(ctx context.Context, id string) (*Seller, error)
	// Snapshot reads the seller's active products among productIDs.
	// Missing, inactive, or foreign products are absent from the result
	// rather than an error.
	Snapshot(ctx context.Context, sellerID string, productIDs []string) (*Snapshot, error)
}

// ProductUnavailableError indicates a requested product does not exist
// for the seller, or is inactive or deleted. The cases are deliberately
// indistinguishable to the caller.
type ProductUnavailableError struct {
	ProductID string
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// VariantNotFoundError indicates the requested variant does not belong
// to the product.
type VariantNotFoundError struct {
	ProductID string
	VariantID string
}

func (e *VariantNotFoundError) Error() string {
	return fmt.Sprintf("variant %s not found for product %s", e.VariantID, e.ProductID)
}

// InsufficientStockError indicates the requested quantity exceeds the
// available stock, either at pricing time or inside the commit
// transaction. Available is -1 when the current value is unknown.
type InsufficientStockError struct {
	ProductID string
	VariantID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	target := e.ProductID
	if e.VariantID != "" {
		target = e.ProductID + "/" + e.VariantID
	}
	if e.Available < 0 {
		return fmt.Sprintf("insufficient stock for %s: requested %d", target, e.Requested)
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", target, e.Requested, e.Available)
}
