package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/domain/payment"
	"github.com/xenking/bytebuy/internal/domain/product"
)

type memCarts struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

func (m *memCarts) Get(_ context.Context, userID string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return c.Clone(), nil
}

func (m *memCarts) Save(_ context.Context, c *cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.UserID] = c.Clone()
	return nil
}

type recordingProvider struct {
	items []payment.LineItem
}

func (p *recordingProvider) CreateSession(_ context.Context, items []payment.LineItem) (*payment.Session, error) {
	p.items = items
	return &payment.Session{ID: "cs_flow", URL: "https://pay.example/cs_flow"}, nil
}

func TestCartFlow(t *testing.T) {
	catalog := &mockProductRepo{products: []product.Product{
		{ID: "kb", Name: "Keyboard", Price: decimal.RequireFromString("89.99"), Stock: 5},
		{ID: "cb", Name: "Cable", Price: decimal.RequireFromString("9.99"), Stock: 200},
	}}
	carts := &memCarts{carts: map[string]*cart.Cart{}}
	provider := &recordingProvider{}
	ledger := cart.NewLedger(carts, catalog, provider)

	r := chi.NewRouter()
	NewHandler(HandlerConfig{}, ledger, catalog, &mockOrderLister{}).Routes(r, passthrough)

	// Unknown shopper sees an empty cart and checkout is refused.
	w := do(t, r, http.MethodGet, "/api/cart/alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[CartResponse](t, w).Products)

	w = do(t, r, http.MethodPost, "/api/checkout/create-session", `{"userId":"alice"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Adding the same product twice merges and clamps to the supplied stock.
	add := `{"userId":"alice","product":{"productId":"kb","name":"Keyboard","price":89.99,"quantity":2,"stock":5}}`
	w = do(t, r, http.MethodPost, "/api/cart/add", add)
	require.Equal(t, http.StatusOK, w.Code)
	add = `{"userId":"alice","product":{"productId":"kb","name":"Keyboard","price":89.99,"quantity":4,"stock":5}}`
	w = do(t, r, http.MethodPost, "/api/cart/add", add)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[CartResponse](t, w)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, 5, resp.Products[0].Quantity)

	w = do(t, r, http.MethodPost, "/api/cart/add",
		`{"userId":"alice","product":{"productId":"cb","name":"Cable","price":"9.99","quantity":1}}`)
	require.Equal(t, http.StatusOK, w.Code)

	// Update clamps to catalog stock.
	w = do(t, r, http.MethodPut, "/api/cart/alice/kb", `{"quantity":10}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decodeBody[CartResponse](t, w)
	assert.Equal(t, 5, resp.Products[0].Quantity)
	assert.Equal(t, 6, resp.ItemCount)
	assert.InDelta(t, 459.94, resp.Subtotal, 1e-9)

	// Invalid quantity leaves the cart untouched.
	w = do(t, r, http.MethodPut, "/api/cart/alice/kb", `{"quantity":0}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/cart/alice/missing", `{"quantity":1}`)
	require.Equal(t, http.StatusNotFound, w.Code)

	// Removing an absent product is a no-op.
	w = do(t, r, http.MethodDelete, "/api/cart/alice/missing", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[CartResponse](t, w).Products, 2)

	w = do(t, r, http.MethodPost, "/api/checkout/create-session", `{"userId":"alice"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cs_flow", decodeBody[CheckoutResponse](t, w).ID)
	assert.Equal(t, []payment.LineItem{
		{Name: "Keyboard", UnitAmount: 8999, Quantity: 5},
		{Name: "Cable", UnitAmount: 999, Quantity: 1},
	}, provider.items)

	// Checkout does not clear the cart.
	w = do(t, r, http.MethodGet, "/api/cart/alice", "")
	assert.Len(t, decodeBody[CartResponse](t, w).Products, 2)

	w = do(t, r, http.MethodDelete, "/api/cart/clear/alice", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeBody[CartResponse](t, w).Products)

	// Removing from a cart that never existed is an error.
	w = do(t, r, http.MethodDelete, "/api/cart/bob/kb", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
