package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPaid      OrderStatus = "paid"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID                    uuid.UUID        `json:"id"`
	UserID                string           `json:"user_id"`
	Email                 string           `json:"email"`
	ShippingAddress       *ShippingAddress `json:"shipping_address"`
	SubtotalCents         int              `json:"subtotal_cents"`
	ShippingCents         int              `json:"shipping_cents"`
	TotalCents            int              `json:"total_cents"`
	Status                OrderStatus      `json:"status"`
	StripeSessionID       string           `json:"stripe_session_id"`
	StripePaymentIntentID string           `json:"stripe_payment_intent_id"`
	Items                 []OrderItem      `json:"items,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// OrderItem carries the name, unit price, and digital flag captured at the
// moment of sale, so later catalog edits never change what was bought.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	ProductID  string    `json:"product_id"`
	Name       string    `json:"name"`
	Quantity   int       `json:"quantity"`
	PriceCents int       `json:"price_cents"`
	IsDigital  bool      `json:"is_digital"`
	CreatedAt  time.Time `json:"created_at"`
}

type ShippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}
