package models

import "time"

// Product is the catalog record this service reads stock from. Stock is
// nullable: nil means inventory is untracked and never decremented.
type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int       `json:"price_cents"`
	IsDigital  bool      `json:"is_digital"`
	Stock      *int      `json:"stock"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
