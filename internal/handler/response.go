package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/domain/payment"
	"github.com/xenking/bytebuy/internal/domain/product"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Warn("Encode response failed", zap.Error(err))
	}
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondJSON(w, r, status, ErrorResponse{Code: status, Message: msg})
}

// respondError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and reported as 500 without details.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *payment.ProviderError
	switch {
	case errors.Is(err, cart.ErrInvalidArgument):
		respondMessage(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, cart.ErrEmptyCart):
		respondMessage(w, r, http.StatusBadRequest, "Cart is empty")
	case errors.Is(err, cart.ErrCartNotFound):
		respondMessage(w, r, http.StatusNotFound, "Cart not found")
	case errors.Is(err, cart.ErrItemNotFound):
		respondMessage(w, r, http.StatusNotFound, "Item not found")
	case errors.Is(err, product.ErrInvalid):
		respondMessage(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, product.ErrNotFound):
		respondMessage(w, r, http.StatusNotFound, "Product not found")
	case errors.Is(err, product.ErrAlreadyExists):
		respondMessage(w, r, http.StatusConflict, "Product already exists")
	case errors.Is(err, cart.ErrOutOfStock):
		respondMessage(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &perr):
		zctx.From(r.Context()).Warn("Payment provider failed", zap.Error(err))
		respondMessage(w, r, http.StatusBadGateway, perr.Message)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		respondMessage(w, r, http.StatusInternalServerError, "Server error")
	}
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return errors.Wrap(err, "read body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Wrap(cart.ErrInvalidArgument, "invalid JSON body")
	}
	return nil
}
