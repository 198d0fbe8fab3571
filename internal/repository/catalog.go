package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tokolink/internal/domain/catalog"
)

const (
	getSellerSQL = `SELECT id, name, slug, phone FROM sellers WHERE id = $1`

	snapshotProductsSQL = `SELECT id, seller_id, name, price, stock, is_active
		FROM products
		WHERE seller_id = $1 AND id = ANY($2) AND is_active`

	snapshotVariantsSQL = `SELECT id, product_id, name, price, stock
		FROM product_variants
		WHERE product_id = ANY($1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// Seller loads seller contact data by id.
func (r *CatalogRepository) Seller(ctx context.Context, id string) (*catalog.Seller, error) {
	rows, err := r.pool.Query(ctx, getSellerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting seller %q: %w", id, err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[catalog.Seller])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrSellerNotFound
		}
		return nil, fmt.Errorf("getting seller %q: %w", id, err)
	}
	return &s, nil
}

// Snapshot reads the seller's matching active products and their
// variants. Products the seller does not own, or that are inactive or
// deleted, are simply absent from the result.
func (r *CatalogRepository) Snapshot(ctx context.Context, sellerID string, productIDs []string) (*catalog.Snapshot, error) {
	rows, err := r.pool.Query(ctx, snapshotProductsSQL, sellerID, productIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshot products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanSnapshotProduct)
	if err != nil {
		return nil, fmt.Errorf("snapshot products: %w", err)
	}
	if len(products) == 0 {
		return catalog.NewSnapshot(nil), nil
	}

	index := make(map[string]int, len(products))
	found := make([]string, len(products))
	for i, p := range products {
		index[p.ID] = i
		found[i] = p.ID
	}

	vrows, err := r.pool.Query(ctx, snapshotVariantsSQL, found)
	if err != nil {
		return nil, fmt.Errorf("snapshot variants: %w", err)
	}
	err = forEachRow(vrows, func(row pgx.CollectableRow) error {
		var (
			v         catalog.Variant
			productID string
			price     *decimal.Decimal
		)
		if err := row.Scan(&v.ID, &productID, &v.Name, &price, &v.Stock); err != nil {
			return err
		}
		v.Price = price
		if i, ok := index[productID]; ok {
			products[i].Variants = append(products[i].Variants, v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot variants: %w", err)
	}

	return catalog.NewSnapshot(products), nil
}

func scanSnapshotProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p     catalog.Product
		price decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &price, &p.Stock, &p.IsActive)
	p.Price = price
	return p, err
}

// forEachRow iterates rows, closing them when done.
func forEachRow(rows pgx.Rows, fn func(row pgx.CollectableRow) error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
