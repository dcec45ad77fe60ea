// Package handler exposes the storefront REST API: cart ledger operations,
// checkout, the product catalog and checkout history.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/domain/order"
	"github.com/xenking/bytebuy/internal/domain/payment"
	"github.com/xenking/bytebuy/internal/domain/product"
)

// Ledger is the cart behaviour the API delegates to. *cart.Ledger satisfies it.
type Ledger interface {
	AddItem(ctx context.Context, userID string, item cart.IncomingItem) (*cart.Cart, error)
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
	ClearCart(ctx context.Context, userID string) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*cart.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error)
	Checkout(ctx context.Context, userID string) (*payment.Session, error)
}

// OrderLister reads recorded checkouts.
type OrderLister interface {
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
}

var _ Ledger = (*cart.Ledger)(nil)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	// When empty, image paths are returned as stored in the database.
	ImageBaseURL string
}

// Handler serves the HTTP API on top of the cart ledger and the catalog.
type Handler struct {
	ledger       Ledger
	products     product.Repository
	orders       OrderLister
	imageBaseURL string
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	ledger Ledger,
	products product.Repository,
	orders OrderLister,
) *Handler {
	return &Handler{
		ledger:       ledger,
		products:     products,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes mounts the API under r. Catalog reads are public; catalog writes
// and everything keyed by a shopper go through auth.
func (h *Handler) Routes(r chi.Router, auth func(http.Handler) http.Handler) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Get("/products/{productId}", h.GetProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Route("/cart", func(r chi.Router) {
				r.Post("/add", h.AddItem)
				r.Delete("/clear/{userId}", h.ClearCart)
				r.Get("/{userId}", h.GetCart)
				r.Delete("/{userId}/{productId}", h.RemoveItem)
				r.Put("/{userId}/{productId}", h.UpdateQuantity)
			})
			r.Post("/products", h.CreateProduct)
			r.Put("/products/{productId}", h.UpdateProduct)
			r.Post("/checkout/create-session", h.CreateCheckoutSession)
			r.Get("/orders/{userId}", h.ListOrders)
		})
	})
}
