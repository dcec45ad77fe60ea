package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order records a checkout that was handed off to the payment provider.
type Order struct {
	ID        string
	UserID    string
	SessionID string
	Items     []OrderItem
	Total     decimal.Decimal
	CreatedAt time.Time
}

// OrderItem is the snapshot of one cart line at checkout time.
type OrderItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	UnitAmount int64  `json:"unit_amount"`
	Quantity   int    `json:"quantity"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
}
