package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/bytebuy/internal/domain/order"
	"github.com/xenking/bytebuy/internal/domain/payment"
)

const (
	meterName = "github.com/xenking/bytebuy/internal/domain/cart"

	// flightTimeout bounds a shared GetCart store read.
	flightTimeout = 10 * time.Second
)

// Ledger owns the mapping from shopper to cart. Every operation is a single
// read-modify-write of one cart document; concurrent writers for the same
// user race and the last write wins.
type Ledger struct {
	carts    Repository
	cache    Cache
	catalog  Catalog
	payments payment.Provider
	orders   order.Repository
	now      func() time.Time

	sfg singleflight.Group

	clamped   metric.Int64Counter
	checkouts metric.Int64Counter
}

// Option configures optional Ledger collaborators.
type Option func(*Ledger)

// WithCache enables read-through caching of GetCart.
func WithCache(c Cache) Option {
	return func(l *Ledger) { l.cache = c }
}

// WithOrders records every handed-off checkout in r.
func WithOrders(r order.Repository) Option {
	return func(l *Ledger) { l.orders = r }
}

// WithMeterProvider sets the meter provider for ledger metrics. The global
// provider is used by default.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(l *Ledger) { l.initMetrics(mp) }
}

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger backed by the given cart store, stock lookup and
// payment provider.
func NewLedger(carts Repository, catalog Catalog, payments payment.Provider, opts ...Option) *Ledger {
	l := &Ledger{
		carts:    carts,
		cache:    nopCache{},
		catalog:  catalog,
		payments: payments,
		now:      time.Now,
	}
	l.initMetrics(otel.GetMeterProvider())
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) initMetrics(mp metric.MeterProvider) {
	meter := mp.Meter(meterName)

	var err error
	if l.clamped, err = meter.Int64Counter("cart.quantity.clamped",
		metric.WithDescription("Line item quantities silently reduced to available stock"),
	); err != nil {
		l.clamped = noop.Int64Counter{}
	}
	if l.checkouts, err = meter.Int64Counter("cart.checkouts",
		metric.WithDescription("Payment sessions created from carts"),
	); err != nil {
		l.checkouts = noop.Int64Counter{}
	}
}

// AddItem merges item into the user's cart, creating the cart on first use.
// A duplicate product has its quantity increased and, when a positive stock
// is supplied, silently clamped to it. New lines are appended unclamped.
func (l *Ledger) AddItem(ctx context.Context, userID string, item IncomingItem) (*Cart, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := validateItem(item.LineItem); err != nil {
		return nil, err
	}

	c, err := l.load(ctx, userID)
	switch {
	case errors.Is(err, ErrCartNotFound):
		c = &Cart{UserID: userID, Items: []LineItem{item.LineItem}}
	case err != nil:
		return nil, err
	default:
		if i := c.indexOf(item.ProductID); i >= 0 {
			qty := c.Items[i].Quantity + item.Quantity
			if item.Stock != nil && *item.Stock > 0 && qty > *item.Stock {
				qty = *item.Stock
				l.clamped.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "add")))
			}
			c.Items[i].Quantity = qty
		} else {
			c.Items = append(c.Items, item.LineItem)
		}
	}

	if err := l.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCart returns the user's cart, or an empty unsaved cart when none exists.
func (l *Ledger) GetCart(ctx context.Context, userID string) (*Cart, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	// Concurrent misses for one user share a single store read. The read is
	// detached from the first caller so its cancellation does not fail the
	// others; each caller still stops waiting when its own ctx is done.
	ch := l.sfg.DoChan(userID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return l.readThrough(flightCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Cart).Clone(), nil
	}
}

func (l *Ledger) readThrough(ctx context.Context, userID string) (*Cart, error) {
	cached, err := l.cache.Get(ctx, userID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		zctx.From(ctx).Warn("Cart cache read failed", zap.String("user_id", userID), zap.Error(err))
	}

	c, err := l.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return Empty(userID), nil
	}
	if err != nil {
		return nil, err
	}

	// A write that landed after load has already cached a newer UpdatedAt,
	// so this fill is dropped by the cache.
	if err := l.cache.Set(ctx, c); err != nil {
		zctx.From(ctx).Warn("Cart cache write failed", zap.String("user_id", userID), zap.Error(err))
	}
	return c, nil
}

// ClearCart removes every line item. A missing cart yields an empty response
// and nothing is persisted.
func (l *Ledger) ClearCart(ctx context.Context, userID string) (*Cart, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	c, err := l.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return Empty(userID), nil
	}
	if err != nil {
		return nil, err
	}

	c.Items = []LineItem{}
	if err := l.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem drops the line with productID. Removing an absent product is a
// no-op; only a missing cart is an error.
func (l *Ledger) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	c, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	i := c.indexOf(productID)
	if i < 0 {
		return c, nil
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	if err := l.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateQuantity sets the quantity of an existing line, silently clamped to
// the catalog stock. A failed or empty stock lookup leaves the quantity
// unbounded.
func (l *Ledger) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}

	c, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := c.indexOf(productID)
	if i < 0 {
		return nil, errors.Wrapf(ErrItemNotFound, "product %s", productID)
	}

	stock, ok, err := l.catalog.StockOf(ctx, productID)
	switch {
	case err != nil:
		zctx.From(ctx).Warn("Stock lookup failed, quantity left unbounded",
			zap.String("product_id", productID), zap.Error(err))
	case !ok:
	case stock < 1:
		return nil, errors.Wrapf(ErrOutOfStock, "product %s", productID)
	case quantity > stock:
		quantity = stock
		l.clamped.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
	}

	c.Items[i].Quantity = quantity
	if err := l.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Checkout submits the user's cart to the payment provider and returns the
// session handle unchanged. Quantities are not checked against stock.
func (l *Ledger) Checkout(ctx context.Context, userID string) (*payment.Session, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	c, err := l.load(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		c = Empty(userID)
	} else if err != nil {
		return nil, err
	}

	items, err := PrepareCheckout(c)
	if err != nil {
		return nil, err
	}

	session, err := l.payments.CreateSession(ctx, items)
	if err != nil {
		var perr *payment.ProviderError
		if !errors.As(err, &perr) {
			perr = &payment.ProviderError{Message: err.Error(), Err: err}
		}
		return nil, perr
	}
	l.checkouts.Add(ctx, 1)

	l.recordOrder(ctx, c, session, items)
	return session, nil
}

// recordOrder stores the checkout hand-off. The session already exists at the
// provider, so a failure here is logged and not returned.
func (l *Ledger) recordOrder(ctx context.Context, c *Cart, session *payment.Session, items []payment.LineItem) {
	if l.orders == nil {
		return
	}

	o := &order.Order{
		ID:        uuid.New().String(),
		UserID:    c.UserID,
		SessionID: session.ID,
		Items:     make([]order.OrderItem, len(items)),
		Total:     DeriveTotals(c).Subtotal,
		CreatedAt: l.now(),
	}
	for i, item := range items {
		o.Items[i] = order.OrderItem{
			ProductID:  c.Items[i].ProductID,
			Name:       item.Name,
			UnitAmount: item.UnitAmount,
			Quantity:   item.Quantity,
		}
	}
	if err := l.orders.Create(ctx, o); err != nil {
		zctx.From(ctx).Error("Record order failed",
			zap.String("user_id", c.UserID),
			zap.String("session_id", session.ID),
			zap.Error(err),
		)
	}
}

func (l *Ledger) load(ctx context.Context, userID string) (*Cart, error) {
	c, err := l.carts.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return nil, errors.Wrapf(ErrCartNotFound, "user %s", userID)
		}
		return nil, &StorageError{Op: "get cart", Err: err}
	}
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return c, nil
}

func (l *Ledger) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = l.now()
	if err := l.carts.Save(ctx, c); err != nil {
		return &StorageError{Op: "save cart", Err: err}
	}

	// Write through: an eviction alone can be overtaken by a concurrent
	// read-through fill of the previous version.
	if err := l.cache.Set(ctx, c); err != nil {
		lg := zctx.From(ctx).With(zap.String("user_id", c.UserID))
		lg.Warn("Cart cache refresh failed, evicting", zap.Error(err))
		if err := l.cache.Delete(ctx, c.UserID); err != nil {
			lg.Warn("Cart cache invalidation failed", zap.Error(err))
		}
	}
	return nil
}

func validateUser(userID string) error {
	if userID == "" {
		return errors.Wrap(ErrInvalidArgument, "user id required")
	}
	return nil
}

func validateItem(item LineItem) error {
	if item.ProductID == "" {
		return errors.Wrap(ErrInvalidArgument, "product id required")
	}
	if item.Price.IsNegative() {
		return errors.Wrapf(ErrInvalidArgument, "price must not be negative for product %s", item.ProductID)
	}
	if item.Quantity < 1 {
		return &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return nil
}
