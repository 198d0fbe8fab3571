package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/tokolink/internal/domain/catalog"
)

// LineItemRequest is one requested (product, variant, quantity) entry
// of a cart. VariantID is empty when the product is bought directly.
type LineItemRequest struct {
	ProductID string
	VariantID string
	Quantity  int
}

// PricedLineItem is a line item resolved against the catalog snapshot.
type PricedLineItem struct {
	ProductID    string
	VariantID    string
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// PriceCart resolves every requested line item against the snapshot and
// returns the priced items plus the subtotal. A variant's stock and
// price override are authoritative when a variant is named; otherwise
// the product's own stock and price apply. Stock sufficiency here is a
// fast-path check only; the commit transaction re-validates it.
func PriceCart(snap *catalog.Snapshot, items []LineItemRequest) ([]PricedLineItem, decimal.Decimal, error) {
	priced := make([]PricedLineItem, 0, len(items))
	subtotal := decimal.Zero

	for _, item := range items {
		p, ok := snap.Product(item.ProductID)
		if !ok {
			return nil, decimal.Zero, &catalog.ProductUnavailableError{ProductID: item.ProductID}
		}

		name := p.Name
		price := p.Price
		available := p.Stock

		if item.VariantID != "" {
			v, ok := p.Variant(item.VariantID)
			if !ok {
				return nil, decimal.Zero, &catalog.VariantNotFoundError{
					ProductID: item.ProductID,
					VariantID: item.VariantID,
				}
			}
			name = p.Name + " - " + v.Name
			available = v.Stock
			if v.Price != nil {
				price = *v.Price
			}
		}

		if item.Quantity > available {
			return nil, decimal.Zero, &catalog.InsufficientStockError{
				ProductID: item.ProductID,
				VariantID: item.VariantID,
				Requested: item.Quantity,
				Available: available,
			}
		}

		line := price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		priced = append(priced, PricedLineItem{
			ProductID:    item.ProductID,
			VariantID:    item.VariantID,
			Name:         name,
			UnitPrice:    price,
			Quantity:     item.Quantity,
			LineSubtotal: line,
		})
		subtotal = subtotal.Add(line)
	}

	return priced, subtotal.Round(2), nil
}
