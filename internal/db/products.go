package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProductStore struct {
	pool *pgxpool.Pool
}

var ErrProductNotFound = errors.New("product not found")

func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

func (s *ProductStore) GetByID(ctx context.Context, productID string) (*Product, error) {
	query := `
		SELECT id, name, price_cents, is_digital, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`
	var (
		product   Product
		stock     pgtype.Int4
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, query, productID).Scan(
		&product.ID,
		&product.Name,
		&product.PriceCents,
		&product.IsDigital,
		&stock,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	if stock.Valid {
		value := int(stock.Int32)
		product.Stock = &value
	}
	product.CreatedAt = createdAt.Time
	product.UpdatedAt = updatedAt.Time
	return &product, nil
}

// DecrementStock subtracts quantity from tracked stock in a single statement,
// clamped at zero. Untracked products (NULL stock) are left untouched.
// Concurrent decrements for the same product serialize on the row, so stock
// can never go negative or lose an update.
func (s *ProductStore) DecrementStock(ctx context.Context, productID string, quantity int) error {
	query := `
		UPDATE products
		SET stock = GREATEST(stock - $2, 0), updated_at = NOW()
		WHERE id = $1 AND stock IS NOT NULL
	`
	_, err := s.pool.Exec(ctx, query, productID, quantity)
	return err
}
