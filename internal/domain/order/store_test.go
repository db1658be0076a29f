package order

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/delifood-checkout/internal/domain/identity"
	"github.com/xenking/delifood-checkout/internal/domain/notification"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// memStore is a transactional in-memory catalog and order store. A
// transaction works on private copies and publishes them only on success, so
// a failed transaction leaves no trace. Transactions are serialized.
type memStore struct {
	mu       sync.Mutex
	products map[int64]product.Product
	orders   map[int64]*Order
	nextID   int64

	// failStep makes the named transaction step fail with failErr.
	failStep string
	failErr  error
	// beforeTx runs before each transaction takes the lock.
	beforeTx func()

	fetchErr  error
	fetches   int
	commits   int
	rollbacks int
}

func newMemStore(products ...product.Product) *memStore {
	m := &memStore{
		products: make(map[int64]product.Product, len(products)),
		orders:   make(map[int64]*Order),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

var (
	_ product.Catalog = (*memStore)(nil)
	_ Store           = (*memStore)(nil)
)

func (m *memStore) FetchByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) stock(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Stock
}

func (m *memStore) setPrice(id int64, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Price = price
	m.products[id] = p
}

func (m *memStore) setStock(id int64, stock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Stock = stock
	m.products[id] = p
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type memTx struct {
	m      *memStore
	stock  map[int64]int
	order  *Order
	lines  []Line
	nextID int64
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if m.beforeTx != nil {
		m.beforeTx()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, stock: make(map[int64]int, len(m.products)), nextID: m.nextID}
	for id, p := range m.products {
		tx.stock[id] = p.Stock
	}

	if err := fn(ctx, tx); err != nil {
		m.rollbacks++
		return err
	}

	for id, s := range tx.stock {
		p := m.products[id]
		p.Stock = s
		m.products[id] = p
	}
	if tx.order != nil {
		o := *tx.order
		o.Lines = slices.Clone(tx.lines)
		m.orders[o.ID] = &o
	}
	m.nextID = tx.nextID
	m.commits++
	return nil
}

func (tx *memTx) fail(step string) error {
	if tx.m.failStep == step {
		return tx.m.failErr
	}
	return nil
}

func (tx *memTx) CreateOrder(_ context.Context, o *Order) error {
	if err := tx.fail("create_order"); err != nil {
		return err
	}
	if o.IdempotencyKey != "" {
		for _, existing := range tx.m.orders {
			if existing.IdempotencyKey == o.IdempotencyKey {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	tx.nextID++
	o.ID = tx.nextID
	o.CreatedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o.UpdatedAt = o.CreatedAt
	cp := *o
	tx.order = &cp
	return nil
}

func (tx *memTx) CreateLines(_ context.Context, _ int64, lines []Line) error {
	if err := tx.fail("create_lines"); err != nil {
		return err
	}
	tx.lines = append(tx.lines, lines...)
	return nil
}

func (tx *memTx) TryDecrement(_ context.Context, productID int64, qty int) (bool, error) {
	if err := tx.fail("decrement"); err != nil {
		return false, err
	}
	p, ok := tx.m.products[productID]
	if !ok || !p.IsActive || tx.stock[productID] < qty {
		return false, nil
	}
	tx.stock[productID] -= qty
	return true, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	cp.Lines = slices.Clone(o.Lines)
	return &cp, nil
}

func (m *memStore) FindByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, from, to Status, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = at
	return true, nil
}

func (m *memStore) ForDelivery(_ context.Context, statuses []Status) ([]DeliveryView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DeliveryView
	for _, o := range m.orders {
		if !slices.Contains(statuses, o.Status) {
			continue
		}
		v := DeliveryView{Order: *o}
		restaurants := map[int64]struct{}{}
		for _, l := range o.Lines {
			rid := m.products[l.ProductID].RestaurantID
			restaurants[rid] = struct{}{}
			if v.RestaurantID == 0 || rid < v.RestaurantID {
				v.RestaurantID = rid
			}
		}
		v.RestaurantCount = len(restaurants)
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b DeliveryView) int { return cmp.Compare(b.Order.ID, a.Order.ID) })
	return out, nil
}

func (m *memStore) ForRestaurant(_ context.Context, restaurantID int64, limit int) ([]RestaurantView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RestaurantView
	for _, o := range m.orders {
		for _, l := range o.Lines {
			if m.products[l.ProductID].RestaurantID == restaurantID {
				out = append(out, RestaurantView{Order: *o})
				break
			}
		}
	}
	slices.SortFunc(out, func(a, b RestaurantView) int { return cmp.Compare(b.Order.ID, a.Order.ID) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type mapDirectory map[int64]identity.User

func (d mapDirectory) Lookup(_ context.Context, id int64) (*identity.User, error) {
	u, ok := d[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return &u, nil
}

type mapIdempotency struct {
	mu   sync.Mutex
	keys map[string]int64
	err  error
}

func (m *mapIdempotency) Lookup(_ context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, false, m.err
	}
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *mapIdempotency) Remember(_ context.Context, key string, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]int64)
	}
	m.keys[key] = orderID
	return nil
}

var errBoom = errors.New("boom")
