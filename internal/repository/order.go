package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tokolink/internal/domain/catalog"
	"github.com/xenking/tokolink/internal/domain/coupon"
	"github.com/xenking/tokolink/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, order_number, seller_id, buyer_name, buyer_phone,
		buyer_address, subtotal, discount, total, coupon_id, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, $12)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, position, product_id, variant_id,
		name, unit_price, quantity, line_subtotal)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)`

	// Redemption re-checks the usage limit at commit time; 0 rows means
	// a concurrent commit exhausted the coupon after validation.
	redeemCouponSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	// Conditional decrements: the WHERE guard is what keeps stock from
	// going negative under concurrent commits.
	decrementProductStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	decrementVariantStockSQL = `UPDATE product_variants SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`

	productStockSQL = `SELECT stock FROM products WHERE id = $1`
	variantStockSQL = `SELECT stock FROM product_variants WHERE id = $1`

	orderNumberExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`

	nextSequenceSQL = `INSERT INTO order_sequences (scope, value) VALUES ('orders', 1)
		ON CONFLICT (scope) DO UPDATE SET value = order_sequences.value + 1
		RETURNING value`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewOrderRepository returns an OrderRepository that uses the given
// pool. acquireTimeout bounds the wait for a transaction's connection.
func NewOrderRepository(pool *pgxpool.Pool, acquireTimeout time.Duration) *OrderRepository {
	if acquireTimeout <= 0 {
		acquireTimeout = 10 * time.Second
	}
	return &OrderRepository{pool: pool, acquireTimeout: acquireTimeout}
}

// Commit atomically creates the order with its line items, redeems the
// coupon if one was applied, and decrements every touched stock
// counter. Each mutation is conditional; a failed guard rolls the whole
// transaction back with the matching domain error. READ COMMITTED is
// sufficient here: the conditional UPDATEs re-evaluate their guard
// against the latest committed row after any lock wait, so two
// transactions can never both pass it.
func (r *OrderRepository) Commit(ctx context.Context, o *order.Order) error {
	acquireCtx, cancel := context.WithTimeout(ctx, r.acquireTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(acquireCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(errors.Wrap(err, "begin commit transaction"))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := r.commitTx(ctx, tx, o); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify(errors.Wrap(err, "commit order transaction"))
	}
	return nil
}

func (r *OrderRepository) commitTx(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	_, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.Number, o.SellerID,
		o.Buyer.Name, o.Buyer.Phone, o.Buyer.Address,
		o.Subtotal, o.Discount, o.Total,
		o.CouponID, string(o.Status), string(o.PaymentStatus),
	)
	if err != nil {
		return classify(fmt.Errorf("creating order %q: %w", o.Number, err))
	}

	for i, item := range o.Items {
		_, err := tx.Exec(ctx, insertOrderItemSQL,
			o.ID, i, item.ProductID, item.VariantID,
			item.Name, item.UnitPrice, item.Quantity, item.LineSubtotal,
		)
		if err != nil {
			return classify(fmt.Errorf("creating order item %d: %w", i, err))
		}
	}

	if o.CouponID != "" {
		ct, err := tx.Exec(ctx, redeemCouponSQL, o.CouponID)
		if err != nil {
			return classify(fmt.Errorf("redeeming coupon %q: %w", o.CouponID, err))
		}
		if ct.RowsAffected() == 0 {
			return coupon.ErrExhausted
		}
	}

	for _, item := range o.Items {
		if err := r.decrementStock(ctx, tx, item); err != nil {
			return err
		}
	}

	return nil
}

// decrementStock applies the conditional decrement to the authoritative
// counter: the variant's when the item names one, else the product's.
func (r *OrderRepository) decrementStock(ctx context.Context, tx pgx.Tx, item order.LineItem) error {
	query, stockQuery, id := decrementProductStockSQL, productStockSQL, item.ProductID
	if item.VariantID != "" {
		query, stockQuery, id = decrementVariantStockSQL, variantStockSQL, item.VariantID
	}

	ct, err := tx.Exec(ctx, query, id, item.Quantity)
	if err != nil {
		return classify(fmt.Errorf("decrementing stock for %q: %w", id, err))
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	// Guard failed: re-read the counter so the error carries the
	// available amount a concurrent commit left behind.
	available := -1
	if err := tx.QueryRow(ctx, stockQuery, id).Scan(&available); err != nil {
		available = -1
	}
	return &catalog.InsufficientStockError{
		ProductID: item.ProductID,
		VariantID: item.VariantID,
		Requested: item.Quantity,
		Available: available,
	}
}

// NumberExists reports whether an order number is already taken.
func (r *OrderRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, orderNumberExistsSQL, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking order number %q: %w", number, err)
	}
	return exists, nil
}

// NextSequence advances and returns the global order counter.
func (r *OrderRepository) NextSequence(ctx context.Context) (int64, error) {
	var value int64
	if err := r.pool.QueryRow(ctx, nextSequenceSQL).Scan(&value); err != nil {
		return 0, fmt.Errorf("advancing order sequence: %w", err)
	}
	return value, nil
}

// classify wraps timeout and connection failures in order.TransientError
// so callers can surface them as retryable. Domain guard failures pass
// through untouched.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &order.TransientError{Err: err}
	}
	var pgErr *pgconn.PgError
	// Class 08: connection exceptions.
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "08") {
		return &order.TransientError{Err: err}
	}
	if pgconn.Timeout(err) {
		return &order.TransientError{Err: err}
	}
	return err
}
