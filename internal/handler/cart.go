package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/bytebuy/internal/domain/cart"
)

// AddItemRequest is the body of POST /api/cart/add.
type AddItemRequest struct {
	UserID  string          `json:"userId"`
	Product IncomingProduct `json:"product"`
}

// IncomingProduct is the product snapshot sent by the storefront. Stock is
// the level the client last saw and only bounds quantity merges.
type IncomingProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Stock     *int            `json:"stock,omitempty"`
}

// UpdateQuantityRequest is the body of PUT /api/cart/{userId}/{productId}.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// CartItem is one line in a cart response.
type CartItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartResponse is the cart as returned by every cart endpoint.
type CartResponse struct {
	UserID    string     `json:"userId"`
	Products  []CartItem `json:"products"`
	Subtotal  float64    `json:"subtotal"`
	ItemCount int        `json:"itemCount"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func toCartResponse(c *cart.Cart) CartResponse {
	totals := cart.DeriveTotals(c)
	resp := CartResponse{
		UserID:    c.UserID,
		Products:  make([]CartItem, len(c.Items)),
		Subtotal:  totals.Subtotal.InexactFloat64(),
		ItemCount: totals.ItemCount,
	}
	for i, item := range c.Items {
		resp.Products[i] = CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price.InexactFloat64(),
			Quantity:  item.Quantity,
		}
	}
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// AddItem merges the submitted product into the shopper's cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p := req.Product
	c, err := h.ledger.AddItem(r.Context(), req.UserID, cart.IncomingItem{
		LineItem: cart.LineItem{
			ProductID: p.ProductID,
			Name:      p.Name,
			Image:     p.Image,
			Price:     p.Price,
			Quantity:  p.Quantity,
		},
		Stock: p.Stock,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// GetCart returns the shopper's cart, empty when none was ever saved.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.ledger.GetCart(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// ClearCart empties the shopper's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.ledger.ClearCart(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// RemoveItem drops one product from the shopper's cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.ledger.RemoveItem(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}

// UpdateQuantity sets the quantity of one cart line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if req.Quantity == nil {
		respondMessage(w, r, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}

	c, err := h.ledger.UpdateQuantity(r.Context(), chi.URLParam(r, "userId"), chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(c))
}
