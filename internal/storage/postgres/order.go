package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bytebuy/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (id, user_id, session_id, items, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	listOrdersByUserSQL = `SELECT id, user_id, session_id, items, total, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL, o.ID, o.UserID, o.SessionID, itemsJSON, o.Total, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// ListByUser returns the user's orders, oldest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders of %q: %w", userID, err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		var (
			o         order.Order
			itemsJSON []byte
		)
		if err := rows.Scan(&o.ID, &o.UserID, &o.SessionID, &itemsJSON, &o.Total, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshaling order items: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
