// Package cart implements the per-shopper cart ledger: merge-on-add, silent
// stock clamping, derived totals and the hand-off to the payment provider.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by the ledger.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrCacheMiss       = errors.New("cache miss")
)

// IsNotFound reports whether err means the cart or the line item is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCartNotFound) || errors.Is(err, ErrItemNotFound)
}

// InvalidQuantityError indicates a requested quantity below 1.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1 for product %s, got %d", e.ProductID, e.Quantity)
}

func (e *InvalidQuantityError) Unwrap() error {
	return ErrInvalidArgument
}

// StorageError wraps a failed persistence round trip. It is never retried.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// LineItem is one product reference in a cart. Name, Image and Price are
// snapshots taken when the product was first added and are never refreshed.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// IncomingItem is a line item submitted for adding, optionally carrying the
// stock level the client last saw.
type IncomingItem struct {
	LineItem
	Stock *int
}

// Cart is the ordered collection of line items owned by one shopper.
type Cart struct {
	UserID    string     `json:"userId"`
	Items     []LineItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Empty returns a cart with no line items for userID. It is not persisted.
func Empty(userID string) *Cart {
	return &Cart{UserID: userID, Items: []LineItem{}}
}

// Clone returns a deep copy of c.
func (c *Cart) Clone() *Cart {
	out := *c
	out.Items = make([]LineItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Repository persists carts, one document per user.
type Repository interface {
	// Get returns ErrCartNotFound when userID has no cart.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Save replaces the stored cart for cart.UserID, creating it if needed.
	Save(ctx context.Context, cart *Cart) error
}

// Cache is a read-through cache for carts.
type Cache interface {
	// Get returns ErrCacheMiss when the cart is not cached.
	Get(ctx context.Context, userID string) (*Cart, error)
	// Set stores cart unless the cached entry has a later UpdatedAt. The
	// comparison and the write must be atomic.
	Set(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, userID string) error
}

// Catalog looks up current stock. ok is false when the product is unknown.
type Catalog interface {
	StockOf(ctx context.Context, productID string) (stock int, ok bool, err error)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*Cart, error) { return nil, ErrCacheMiss }
func (nopCache) Set(context.Context, *Cart) error           { return nil }
func (nopCache) Delete(context.Context, string) error       { return nil }
