package handler

import (
	"net/http"
)

// CheckoutRequest is the body of POST /api/checkout/create-session.
type CheckoutRequest struct {
	UserID string `json:"userId"`
}

// CheckoutResponse carries the provider session handle back to the client.
type CheckoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// CreateCheckoutSession hands the shopper's cart to the payment provider.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	s, err := h.ledger.Checkout(r.Context(), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, CheckoutResponse{ID: s.ID, URL: s.URL})
}
