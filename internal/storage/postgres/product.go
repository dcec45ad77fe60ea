package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bytebuy/internal/domain/cart"
	"github.com/xenking/bytebuy/internal/domain/product"
)

const (
	productColumns = `id, name, description, category, image, price, stock, rating`

	listProductsSQL   = `SELECT ` + productColumns + ` FROM products ORDER BY id`
	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	getStockSQL       = `SELECT stock FROM products WHERE id = $1`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	updateProductSQL = `UPDATE products SET
			name = $2, description = $3, category = $4, image = $5,
			price = $6, stock = $7, rating = $8
		WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			image = EXCLUDED.image,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			rating = EXCLUDED.rating`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ cart.Catalog       = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository backed by PostgreSQL. It
// also serves as the cart ledger's stock lookup.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// StockOf returns the current stock of a product; ok is false when the
// product does not exist.
func (r *ProductRepository) StockOf(ctx context.Context, id string) (int, bool, error) {
	var stock int
	err := r.pool.QueryRow(ctx, getStockSQL, id).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("getting stock of %q: %w", id, err)
	}
	return stock, true, nil
}

// Create inserts p; an existing row with the same ID is left untouched and
// product.ErrAlreadyExists is returned.
func (r *ProductRepository) Create(ctx context.Context, p product.Product) error {
	tag, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Image, p.Price, p.Stock, p.Rating,
	)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrAlreadyExists
	}
	return nil
}

// Update overwrites the row with p.ID.
func (r *ProductRepository) Update(ctx context.Context, p product.Product) error {
	tag, err := r.pool.Exec(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Image, p.Price, p.Stock, p.Rating,
	)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Upsert inserts p or overwrites the existing row with the same ID.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.Image, p.Price, p.Stock, p.Rating,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Image,
		&p.Price, &p.Stock, &p.Rating,
	)
	return p, err
}
