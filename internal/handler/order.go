package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/domain/order"
)

// OrderItemResponse is one line of a recorded checkout.
type OrderItemResponse struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unitAmount"`
	Quantity   int    `json:"quantity"`
}

// OrderResponse is a checkout record as returned to clients.
type OrderResponse struct {
	ID        string              `json:"id"`
	SessionID string              `json:"sessionId"`
	Items     []OrderItemResponse `json:"items"`
	Total     float64             `json:"total"`
	CreatedAt time.Time           `json:"createdAt"`
}

// ListOrders returns the shopper's checkout hand-offs, oldest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		respondError(w, r, errors.Wrap(cart.ErrInvalidArgument, "user id required"))
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, r, errors.Wrap(err, "list orders"))
		return
	}

	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	respondJSON(w, r, http.StatusOK, out)
}

func toOrderResponse(o order.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:  item.ProductID,
			Name:       item.Name,
			UnitAmount: item.UnitAmount,
			Quantity:   item.Quantity,
		}
	}
	return OrderResponse{
		ID:        o.ID,
		SessionID: o.SessionID,
		Items:     items,
		Total:     o.Total.InexactFloat64(),
		CreatedAt: o.CreatedAt,
	}
}
