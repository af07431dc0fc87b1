package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OrderStore struct {
	pool *pgxpool.Pool
}

var (
	// ErrDuplicateSession is returned when an order already exists for the
	// Stripe checkout session id. Webhook delivery is at-least-once, so the
	// caller treats this as "already fulfilled", not as a failure.
	ErrDuplicateSession = errors.New("order already exists for stripe session")

	ErrOrderNotFound = errors.New("order not found")
)

const uniqueViolationCode = "23505"

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts the order row and fills in the generated id and timestamps.
// The stripe_session_id column is unique; a violation surfaces as
// ErrDuplicateSession so redelivered completion events become no-ops.
func (s *OrderStore) Create(ctx context.Context, order *Order) error {
	var shippingAddressJSON []byte
	if order.ShippingAddress != nil {
		encoded, err := json.Marshal(order.ShippingAddress)
		if err != nil {
			return fmt.Errorf("failed to encode shipping address: %w", err)
		}
		shippingAddressJSON = encoded
	}

	query := `
		INSERT INTO orders (user_id, email, shipping_address, subtotal_cents,
		    shipping_cents, total_cents, status, stripe_session_id, stripe_payment_intent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		textOrNull(order.UserID),
		order.Email,
		shippingAddressJSON,
		order.SubtotalCents,
		order.ShippingCents,
		order.TotalCents,
		string(order.Status),
		textOrNull(order.StripeSessionID),
		textOrNull(order.StripePaymentIntentID),
	)

	var createdAt, updatedAt pgtype.Timestamptz
	if err := row.Scan(&order.ID, &createdAt, &updatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: %s", ErrDuplicateSession, order.StripeSessionID)
		}
		return err
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time
	return nil
}

// CreateItem inserts one line item and fills in its generated id.
func (s *OrderStore) CreateItem(ctx context.Context, item *OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, name, quantity, price_cents, is_digital)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var createdAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, query,
		item.OrderID,
		textOrNull(item.ProductID),
		item.Name,
		item.Quantity,
		item.PriceCents,
		item.IsDigital,
	).Scan(&item.ID, &createdAt)
	if err != nil {
		return err
	}
	item.CreatedAt = createdAt.Time
	return nil
}

func (s *OrderStore) GetByStripeSessionID(ctx context.Context, sessionID string) (*Order, error) {
	query := `
		SELECT id, user_id, email, shipping_address, subtotal_cents, shipping_cents,
		       total_cents, status, stripe_session_id, stripe_payment_intent_id,
		       created_at, updated_at
		FROM orders
		WHERE stripe_session_id = $1
	`
	return s.scanOrder(s.pool.QueryRow(ctx, query, sessionID))
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := `
		SELECT id, user_id, email, shipping_address, subtotal_cents, shipping_cents,
		       total_cents, status, stripe_session_id, stripe_payment_intent_id,
		       created_at, updated_at
		FROM orders
		WHERE id = $1
	`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

func (s *OrderStore) scanOrder(row pgx.Row) (*Order, error) {
	var (
		order               Order
		userID              pgtype.Text
		shippingAddressJSON []byte
		status              string
		sessionID           pgtype.Text
		paymentIntentID     pgtype.Text
		createdAt           pgtype.Timestamptz
		updatedAt           pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID,
		&userID,
		&order.Email,
		&shippingAddressJSON,
		&order.SubtotalCents,
		&order.ShippingCents,
		&order.TotalCents,
		&status,
		&sessionID,
		&paymentIntentID,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	order.Status = OrderStatus(status)
	if userID.Valid {
		order.UserID = userID.String
	}
	if sessionID.Valid {
		order.StripeSessionID = sessionID.String
	}
	if paymentIntentID.Valid {
		order.StripePaymentIntentID = paymentIntentID.String
	}
	order.CreatedAt = createdAt.Time
	order.UpdatedAt = updatedAt.Time

	if shippingAddressJSON != nil {
		var address ShippingAddress
		if err := json.Unmarshal(shippingAddressJSON, &address); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
		order.ShippingAddress = &address
	}

	return &order, nil
}

func textOrNull(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}
