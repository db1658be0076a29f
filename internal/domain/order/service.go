package order

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/delifood-checkout/internal/domain/identity"
	"github.com/xenking/delifood-checkout/internal/domain/notification"
	"github.com/xenking/delifood-checkout/internal/domain/pricing"
	"github.com/xenking/delifood-checkout/internal/domain/product"
)

// DefaultNotifyTimeout bounds post-commit notification delivery.
const DefaultNotifyTimeout = 3 * time.Second

// RestaurantOrdersLimit caps the restaurant order view.
const RestaurantOrdersLimit = 50

const instrumentationName = "github.com/xenking/delifood-checkout/internal/domain/order"

// CommitRequest holds the input for committing a cart.
type CommitRequest struct {
	UserID int64
	Items  []Item
	// IdempotencyKey, when set, makes retries of the same request return the
	// order created by the first successful attempt.
	IdempotencyKey string
}

// CommitResult is a committed order.
type CommitResult struct {
	Order   *Order
	Quote   Quote
	Message string
	// Notified is false when the post-commit notification failed. The order
	// is committed either way.
	Notified        bool
	NotificationErr error
	// Replayed is set when the result comes from an earlier request with the
	// same idempotency key.
	Replayed bool
}

// Service prices carts, commits orders and serves order views.
type Service struct {
	catalog  product.Catalog
	store    Store
	notifier notification.Notifier
	policy   pricing.Policy

	users         identity.Directory
	idempotency   IdempotencyStore
	now           func() time.Time
	notifyTimeout time.Duration

	tracer        trace.Tracer
	quotes        metric.Int64Counter
	commits       metric.Int64Counter
	notifyFailure metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithIdentity rejects commits from users unknown to dir.
func WithIdentity(dir identity.Directory) Option {
	return func(s *Service) { s.users = dir }
}

// WithIdempotency enables fast idempotency-key lookups.
func WithIdempotency(store IdempotencyStore) Option {
	return func(s *Service) { s.idempotency = store }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotifyTimeout overrides DefaultNotifyTimeout.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// WithTracerProvider sets the tracer provider. Defaults to no-op.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider. Defaults to no-op.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.initMetrics(mp.Meter(instrumentationName)) }
}

// NewService creates an order Service.
func NewService(
	catalog product.Catalog,
	store Store,
	notifier notification.Notifier,
	policy pricing.Policy,
	opts ...Option,
) *Service {
	if notifier == nil {
		notifier = notification.Nop
	}
	s := &Service{
		catalog:       catalog,
		store:         store,
		notifier:      notifier,
		policy:        policy,
		now:           time.Now,
		notifyTimeout: DefaultNotifyTimeout,
		tracer:        tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	s.initMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) initMetrics(m metric.Meter) {
	// Instrument creation only fails on invalid names.
	s.quotes, _ = m.Int64Counter("orders.quotes",
		metric.WithDescription("Quotes built, by outcome"))
	s.commits, _ = m.Int64Counter("orders.commits",
		metric.WithDescription("Commit attempts, by outcome"))
	s.notifyFailure, _ = m.Int64Counter("orders.notifications.failed",
		metric.WithDescription("Post-commit notifications that failed"))
}

// Quote prices items against the current catalog without writing anything.
func (s *Service) Quote(ctx context.Context, items []Item) (_ Quote, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote",
		trace.WithAttributes(attribute.Int("cart.lines", len(items))))
	defer func() { endSpan(span, rerr) }()

	if err := ValidateItems(items); err != nil {
		s.quotes.Add(ctx, 1, outcome("invalid"))
		return Quote{}, err
	}

	q, err := s.quote(ctx, items)
	if err != nil {
		s.quotes.Add(ctx, 1, outcome("error"))
		return Quote{}, err
	}

	if q.HasError {
		s.quotes.Add(ctx, 1, outcome("rejected"))
	} else {
		s.quotes.Add(ctx, 1, outcome("ok"))
	}
	span.SetAttributes(attribute.Bool("quote.has_error", q.HasError))
	return q, nil
}

func (s *Service) quote(ctx context.Context, items []Item) (Quote, error) {
	snap, err := product.Fetch(ctx, s.catalog, ProductIDs(items))
	if err != nil {
		return Quote{}, &PersistenceError{Op: "read catalog", Err: err}
	}
	return BuildQuote(items, snap, s.now(), s.policy)
}

// Commit re-validates items against a fresh catalog snapshot and, if every
// line is still valid, persists the order, its lines and the stock
// decrements in one transaction. The owner is notified after commit.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (_ *CommitResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Commit", trace.WithAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int("cart.lines", len(req.Items)),
	))
	defer func() {
		s.commits.Add(ctx, 1, outcome(string(commitOutcome(rerr))))
		endSpan(span, rerr)
	}()

	if req.UserID <= 0 {
		return nil, ErrMissingUser
	}
	if err := ValidateItems(req.Items); err != nil {
		return nil, err
	}
	if err := s.checkUser(ctx, req.UserID); err != nil {
		return nil, err
	}

	res, err := s.replay(ctx, req)
	if err != nil {
		return nil, err
	}
	if res != nil {
		span.SetAttributes(attribute.Bool("order.replayed", true))
		return res, nil
	}

	q, err := s.quote(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if q.HasError {
		return nil, &ValidationError{Quote: q}
	}

	o := &Order{
		UserID:         req.UserID,
		Total:          q.Total,
		DeliveryFee:    q.DeliveryFee,
		ETAMinutes:     q.ETAMinutes,
		Status:         StatusPending,
		IdempotencyKey: req.IdempotencyKey,
		Lines:          frozenLines(q),
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateOrder(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := tx.CreateLines(ctx, o.ID, o.Lines); err != nil {
			return errors.Wrap(err, "create lines")
		}
		for _, d := range decrements(o.Lines) {
			ok, err := tx.TryDecrement(ctx, d.ProductID, d.Quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement product %d", d.ProductID)
			}
			if !ok {
				return &stockConflictError{ProductID: d.ProductID}
			}
		}
		return nil
	})
	if err != nil {
		return s.commitFailure(ctx, req, q, err)
	}
	span.SetAttributes(attribute.Int64("order.id", o.ID))

	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.Remember(ctx, req.IdempotencyKey, o.ID); err != nil {
			zctx.From(ctx).Warn("Remember idempotency key",
				zap.Int64("order_id", o.ID), zap.Error(err))
		}
	}

	n := notification.OrderConfirmed(o.UserID, o.ID, o.ETAMinutes, s.now())
	res = &CommitResult{
		Order:   o,
		Quote:   q,
		Message: n.Message,
	}
	res.NotificationErr = s.notify(ctx, n)
	res.Notified = res.NotificationErr == nil
	return res, nil
}

func (s *Service) checkUser(ctx context.Context, userID int64) error {
	if s.users == nil {
		return nil
	}
	if _, err := s.users.Lookup(ctx, userID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return errors.Wrapf(ErrUnknownUser, "user %d", userID)
		}
		return &PersistenceError{Op: "lookup user", Err: err}
	}
	return nil
}

// replay returns the order previously committed under req.IdempotencyKey, or
// nil if there is none. The fast store is consulted first; on a miss or
// failure the order table, which holds the unique key, decides. A key taken
// by another user is rejected before the cart is priced again.
func (s *Service) replay(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	if req.IdempotencyKey == "" {
		return nil, nil
	}
	lg := zctx.From(ctx)

	if s.idempotency != nil {
		id, ok, err := s.idempotency.Lookup(ctx, req.IdempotencyKey)
		switch {
		case err != nil:
			lg.Warn("Idempotency lookup failed", zap.Error(err))
		case ok:
			o, err := s.store.Get(ctx, id)
			if err == nil {
				return s.replayed(o, req)
			}
			lg.Warn("Load replayed order", zap.Int64("order_id", id), zap.Error(err))
		}
	}

	o, err := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		if !errors.Is(err, ErrOrderNotFound) {
			// The unique key on insert still prevents a duplicate.
			lg.Warn("Idempotency key lookup failed", zap.Error(err))
		}
		return nil, nil
	}
	return s.replayed(o, req)
}

func (s *Service) replayed(o *Order, req CommitRequest) (*CommitResult, error) {
	if o.UserID != req.UserID {
		return nil, errors.Wrapf(ErrDuplicateIdempotencyKey, "key %q belongs to another user", req.IdempotencyKey)
	}
	return &CommitResult{
		Order:    o,
		Message:  notification.OrderConfirmed(o.UserID, o.ID, o.ETAMinutes, o.CreatedAt).Message,
		Notified: true,
		Replayed: true,
	}, nil
}

func (s *Service) commitFailure(ctx context.Context, req CommitRequest, q Quote, err error) (*CommitResult, error) {
	var conflict *stockConflictError
	switch {
	case errors.As(err, &conflict):
		return nil, &ValidationError{Quote: s.requote(ctx, req.Items, q, conflict.ProductID)}
	case errors.Is(err, ErrDuplicateIdempotencyKey):
		o, lerr := s.store.FindByIdempotencyKey(ctx, req.IdempotencyKey)
		if lerr != nil {
			return nil, &PersistenceError{Op: "load idempotent order", Err: lerr}
		}
		return s.replayed(o, req)
	default:
		return nil, &PersistenceError{Op: "commit order", Err: err}
	}
}

// requote rebuilds the quote after a lost stock race so the caller sees the
// stock that is actually left. The conflicting product is always reported as
// failed, even if stock was replenished in between.
func (s *Service) requote(ctx context.Context, items []Item, prev Quote, productID int64) Quote {
	q, err := s.quote(ctx, items)
	if err != nil {
		zctx.From(ctx).Warn("Re-quote after stock conflict", zap.Error(err))
		q = prev
	}
	if q.HasError {
		return q
	}
	for i := range q.Lines {
		if q.Lines[i].ProductID == productID {
			q.Lines[i].OK = false
			q.Lines[i].Reason = ReasonInsufficientStock
			q.Lines[i].Available = 0
		}
	}
	q.HasError = true
	return q
}

// notify delivers n with a bounded, cancellation-detached context. Failures
// are logged and returned but never undo the committed order.
func (s *Service) notify(ctx context.Context, n notification.Notification) error {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(nctx, n); err != nil {
		s.notifyFailure.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(n.Kind))))
		zctx.From(ctx).Warn("Notification failed",
			zap.Int64("order_id", n.OrderID),
			zap.Int64("user_id", n.UserID),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)
		return errors.Wrap(err, "notify")
	}
	return nil
}

// UpdateStatus moves an order along its lifecycle and notifies its owner.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", string(to)),
	))
	defer func() { endSpan(span, rerr) }()

	if !to.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "%q", to)
	}

	o, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(to) {
		return nil, &TransitionError{OrderID: id, From: o.Status, To: to}
	}

	now := s.now()
	ok, err := s.store.UpdateStatus(ctx, id, o.Status, to, now)
	if err != nil {
		return nil, &PersistenceError{Op: "update status", Err: err}
	}
	if !ok {
		current, err := s.get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &TransitionError{OrderID: id, From: current.Status, To: to, Conflict: true}
	}

	o.Status = to
	o.UpdatedAt = now
	_ = s.notify(ctx, notification.StatusChanged(o.UserID, o.ID, string(to), to.Label(), now))
	return o, nil
}

func (s *Service) get(ctx context.Context, id int64) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrOrderNotFound):
		return nil, err
	case err != nil:
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return o, nil
}

// frozenLines copies the accepted quote lines with their current prices.
func frozenLines(q Quote) []Line {
	lines := make([]Line, 0, len(q.Lines))
	for _, l := range q.Lines {
		if l.OK {
			lines = append(lines, Line{ProductID: l.ProductID, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		}
	}
	return lines
}

type decrement struct {
	ProductID int64
	Quantity  int
}

// decrements sums quantities per product in ascending product id order, so
// concurrent commits lock rows in the same order.
func decrements(lines []Line) []decrement {
	byID := make(map[int64]int, len(lines))
	for _, l := range lines {
		byID[l.ProductID] += l.Quantity
	}
	out := make([]decrement, 0, len(byID))
	for id, qty := range byID {
		out = append(out, decrement{ProductID: id, Quantity: qty})
	}
	slices.SortFunc(out, func(a, b decrement) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out
}

func outcome(v string) metric.AddOption {
	return metric.WithAttributes(attribute.String("outcome", v))
}

func commitOutcome(err error) Code {
	if err == nil {
		return "OK"
	}
	return CodeOf(err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
