package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/bytebuy/internal/domain/product"
)

// ProductResponse is the catalog entry returned to clients.
type ProductResponse struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Rating      float64 `json:"rating"`
}

// ProductRequest is the body of catalog writes. Omitted fields keep their
// current value on update and their zero value on create.
type ProductRequest struct {
	ID          string           `json:"_id"`
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Rating      *float64         `json:"rating"`
}

func (req *ProductRequest) applyTo(p *product.Product) {
	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Image != nil {
		p.Image = *req.Image
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.Rating != nil {
		p.Rating = *req.Rating
	}
}

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		respondError(w, r, errors.Wrap(err, "list products"))
		return
	}

	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = h.toProductResponse(p)
	}
	respondJSON(w, r, http.StatusOK, out)
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toProductResponse(*p))
}

// CreateProduct adds a catalog entry. A missing _id is generated.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p := product.Product{ID: req.ID}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	req.applyTo(&p)
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, h.toProductResponse(p))
}

// UpdateProduct changes the supplied fields of an existing catalog entry and
// returns the result.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	req.applyTo(p)
	if err := p.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.products.Update(r.Context(), *p); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, h.toProductResponse(*p))
}

// toProductResponse prefixes relative image paths with imageBaseURL.
func (h *Handler) toProductResponse(p product.Product) ProductResponse {
	image := p.Image
	if h.imageBaseURL != "" && image != "" && !strings.Contains(image, "://") {
		image = h.imageBaseURL + image
	}
	return ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Image:       image,
		Price:       p.Price.InexactFloat64(),
		Stock:       p.Stock,
		Rating:      p.Rating,
	}
}
