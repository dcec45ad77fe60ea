package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors returned by catalog operations.
var (
	ErrNotFound      = errors.New("product not found")
	ErrAlreadyExists = errors.New("product already exists")
	ErrInvalid       = errors.New("invalid product")
)

// Product represents a catalog entry available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Image       string
	Price       decimal.Decimal
	Stock       int
	Rating      float64
}

// Validate checks the fields every stored product must satisfy.
func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return errors.Wrap(ErrInvalid, "id required")
	case p.Name == "":
		return errors.Wrap(ErrInvalid, "name required")
	case p.Price.IsNegative():
		return errors.Wrap(ErrInvalid, "price must not be negative")
	case p.Stock < 0:
		return errors.Wrap(ErrInvalid, "stock must not be negative")
	}
	return nil
}

// Repository defines catalog storage.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	// StockOf reports the current stock of a product. ok is false when the
	// product does not exist.
	StockOf(ctx context.Context, id string) (stock int, ok bool, err error)
	// Create returns ErrAlreadyExists when p.ID is taken.
	Create(ctx context.Context, p Product) error
	// Update replaces every field of the product with p.ID, or returns
	// ErrNotFound.
	Update(ctx context.Context, p Product) error
}
