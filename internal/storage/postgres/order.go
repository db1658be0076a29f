package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/delifood-checkout/internal/domain/order"
)

const (
	orderColumns = `o.id, o.user_id, o.total, o.delivery_fee, o.eta_minutes, o.status,
		COALESCE(o.idempotency_key, ''), o.created_at, o.updated_at`

	insertOrderSQL = `INSERT INTO orders (user_id, total, delivery_fee, eta_minutes, status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	decrementStockSQL = `UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2 AND is_active`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1`

	getOrderByKeySQL = `SELECT ` + orderColumns + ` FROM orders o WHERE o.idempotency_key = $1`

	getOrderLinesSQL = `SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY line_no`

	updateStatusSQL = `UPDATE orders SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2`

	idempotencyConstraint = "orders_idempotency_key_key"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore persists orders. Commit writes go through WithinTx.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// WithinTx runs fn in a read-committed transaction. Row locks taken by the
// conditional stock decrements are held until fn returns.
func (s *OrderStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx order.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

type orderTx struct {
	tx pgx.Tx
}

func (t *orderTx) CreateOrder(ctx context.Context, o *order.Order) error {
	var key *string
	if o.IdempotencyKey != "" {
		key = &o.IdempotencyKey
	}

	err := t.tx.QueryRow(ctx, insertOrderSQL,
		o.UserID, o.Total, o.DeliveryFee, o.ETAMinutes, string(o.Status), key,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, idempotencyConstraint) {
			return order.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (t *orderTx) CreateLines(ctx context.Context, orderID int64, lines []order.Line) error {
	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "line_no", "product_id", "quantity", "unit_price"},
		pgx.CopyFromSlice(len(lines), func(i int) ([]any, error) {
			l := lines[i]
			return []any{orderID, int32(i + 1), l.ProductID, int32(l.Quantity), l.UnitPrice}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("copying order lines: %w", err)
	}
	if int(n) != len(lines) {
		return errors.Errorf("copied %d of %d order lines", n, len(lines))
	}
	return nil
}

func (t *orderTx) TryDecrement(ctx context.Context, productID int64, qty int) (bool, error) {
	tag, err := t.tx.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrementing stock of product %d: %w", productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Get returns an order with its lines.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	return s.load(ctx, getOrderSQL, id)
}

// FindByIdempotencyKey returns the order committed under key.
func (s *OrderStore) FindByIdempotencyKey(ctx context.Context, key string) (*order.Order, error) {
	return s.load(ctx, getOrderByKeySQL, key)
}

func (s *OrderStore) load(ctx context.Context, query string, arg any) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}

	rows, err = s.pool.Query(ctx, getOrderLinesSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %d: %w", o.ID, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %d: %w", o.ID, err)
	}
	return &o, nil
}

// UpdateStatus sets the status only if the order is still in status from.
func (s *OrderStore) UpdateStatus(ctx context.Context, id int64, from, to order.Status, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, updateStatusSQL, id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("updating status of order %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		eta    int32
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Total, &o.DeliveryFee, &eta, &status,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return order.Order{}, fmt.Errorf("scanning order: %w", err)
	}
	o.ETAMinutes = int(eta)
	o.Status = order.Status(status)
	return o, nil
}

func scanLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l   order.Line
		qty int32
	)
	if err := row.Scan(&l.ProductID, &qty, &l.UnitPrice); err != nil {
		return order.Line{}, fmt.Errorf("scanning order line: %w", err)
	}
	l.Quantity = int(qty)
	return l, nil
}
