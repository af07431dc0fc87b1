package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/printhausapp/printhaus/internal/cart"
	"github.com/printhausapp/printhaus/internal/db"
	"github.com/printhausapp/printhaus/internal/email"
	"github.com/printhausapp/printhaus/internal/logging"
	"github.com/printhausapp/printhaus/internal/observability"
	"github.com/printhausapp/printhaus/internal/token"
)

type orderStore interface {
	Create(ctx context.Context, order *db.Order) error
	CreateItem(ctx context.Context, item *db.OrderItem) error
	GetByStripeSessionID(ctx context.Context, sessionID string) (*db.Order, error)
}

type grantStore interface {
	CreateGrant(ctx context.Context, grant *db.DownloadGrant) error
}

type stockLedger interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// GrantPolicy is the validity window applied to every new download grant.
type GrantPolicy struct {
	MaxDownloads int
	Validity     time.Duration
}

type FulfillmentService struct {
	orders      orderStore
	downloads   grantStore
	products    stockLedger
	emailSender OrderEmailSender
	policy      GrantPolicy
	baseURL     string
	logger      *slog.Logger
}

func NewFulfillmentService(orders orderStore, downloads grantStore, products stockLedger, emailSender OrderEmailSender, policy GrantPolicy, baseURL string, logger *slog.Logger) *FulfillmentService {
	if emailSender == nil {
		emailSender = noopOrderEmailSender{}
	}

	return &FulfillmentService{
		orders:      orders,
		downloads:   downloads,
		products:    products,
		emailSender: emailSender,
		policy:      policy,
		baseURL:     baseURL,
		logger:      logger,
	}
}

func (s *FulfillmentService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

type checkoutSessionPayload struct {
	stripeapi.CheckoutSession
	ShippingDetails *stripeapi.ShippingDetails `json:"shipping_details"`
}

// UnmarshalJSON is needed because the embedded CheckoutSession's own
// UnmarshalJSON is promoted to this type and would otherwise bypass the
// shipping_details field declared above.
func (p *checkoutSessionPayload) UnmarshalJSON(data []byte) error {
	if err := p.CheckoutSession.UnmarshalJSON(data); err != nil {
		return err
	}
	var aux struct {
		ShippingDetails *stripeapi.ShippingDetails `json:"shipping_details"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ShippingDetails = aux.ShippingDetails
	return nil
}

// HandleCheckoutSessionCompleted turns one verified completion event into a
// paid order with its items, download grants, and stock decrements.
//
// Order and item writes are fatal: the error propagates so Stripe redelivers
// the event. Grant creation and stock decrements are recovered locally; a
// recorded payment is never rolled back by downstream bookkeeping.
func (s *FulfillmentService) HandleCheckoutSessionCompleted(ctx context.Context, payload []byte) error {
	span := sentry.StartSpan(
		ctx,
		"service.fulfillment.checkout_completed",
		sentry.WithOpName("service.fulfillment"),
		sentry.WithDescription("HandleCheckoutSessionCompleted"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("fulfillment.received", 1)
	recordFailure := func(reason string) {
		meter.Count("fulfillment.failed", 1, sentry.WithAttributes(attribute.String("reason", reason)))
	}

	var session checkoutSessionPayload
	if err := json.Unmarshal(payload, &session); err != nil {
		recordFailure("invalid_event_object")
		return fmt.Errorf("invalid event object: %w", err)
	}
	if session.ID == "" {
		recordFailure("missing_session_id")
		return fmt.Errorf("missing session ID")
	}

	if _, err := s.orders.GetByStripeSessionID(ctx, session.ID); err == nil {
		logger.Info("session already fulfilled, skipping", "session_id", session.ID)
		meter.Count("fulfillment.duplicate", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	} else if !errors.Is(err, db.ErrOrderNotFound) {
		recordFailure("session_lookup_failed")
		return fmt.Errorf("failed to check for existing order: %w", err)
	}

	items, invalid := cart.Decode(session.Metadata["items"])
	for _, itemErr := range invalid {
		// Degrade rather than fail: a zero-item order still records the
		// payment for manual reconciliation.
		logger.Warn("dropping unusable cart snapshot entry", "session_id", session.ID, "error", itemErr)
	}

	subtotalCents := cart.SubtotalCents(items)
	shippingCents := 0
	if session.ShippingCost != nil {
		shippingCents = int(session.ShippingCost.AmountTotal)
	}
	totalCents := subtotalCents + shippingCents
	if session.AmountTotal > 0 {
		// The provider-reported amount is what was actually charged.
		totalCents = int(session.AmountTotal)
	}

	order := &db.Order{
		UserID:          session.Metadata["user_id"],
		Email:           customerEmail(&session),
		ShippingAddress: buildShippingAddress(session.ShippingDetails, session.CustomerDetails),
		SubtotalCents:   subtotalCents,
		ShippingCents:   shippingCents,
		TotalCents:      totalCents,
		Status:          db.StatusPaid,
		StripeSessionID: session.ID,
	}
	if session.PaymentIntent != nil {
		order.StripePaymentIntentID = session.PaymentIntent.ID
	}

	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, db.ErrDuplicateSession) {
			logger.Info("concurrent delivery already fulfilled session", "session_id", session.ID)
			meter.Count("fulfillment.duplicate", 1)
			span.Status = sentry.SpanStatusOK
			return nil
		}
		recordFailure("order_create_failed")
		return fmt.Errorf("failed to create order: %w", err)
	}

	var downloads []email.DownloadInfo
	for _, snapshotItem := range items {
		item := &db.OrderItem{
			OrderID:    order.ID,
			ProductID:  snapshotItem.ProductID,
			Name:       snapshotItem.Name,
			Quantity:   snapshotItem.Quantity,
			PriceCents: snapshotItem.PriceCents,
			IsDigital:  snapshotItem.IsDigital,
		}
		if err := s.orders.CreateItem(ctx, item); err != nil {
			recordFailure("order_item_create_failed")
			return fmt.Errorf("failed to create order item for %s: %w", snapshotItem.ProductID, err)
		}
		order.Items = append(order.Items, *item)

		if snapshotItem.IsDigital {
			grant, err := s.createGrant(ctx, item)
			if err != nil {
				logger.Error("failed to create download grant", "order_id", order.ID, "order_item_id", item.ID, "error", err)
				meter.Count("fulfillment.grant_failed", 1)
				continue
			}
			downloads = append(downloads, email.DownloadInfo{
				Name:      item.Name,
				URL:       fmt.Sprintf("%s/downloads/%s", s.baseURL, grant.DownloadToken),
				MaxUses:   grant.MaxDownloads,
				ExpiresAt: grant.ExpiresAt.Format("2006-01-02"),
			})
			continue
		}

		if snapshotItem.ProductID != "" {
			if err := s.products.DecrementStock(ctx, snapshotItem.ProductID, snapshotItem.Quantity); err != nil {
				logger.Error("failed to decrement stock", "order_id", order.ID, "product_id", snapshotItem.ProductID, "error", err)
				meter.Count("fulfillment.stock_decrement_failed", 1)
			}
		}
	}

	if err := s.sendConfirmation(ctx, order, downloads); err != nil {
		logger.Error("failed to send order confirmation email", "order_id", order.ID, "error", err)
		meter.Count("fulfillment.email_failed", 1)
	}

	logger.Info("order fulfilled", "order_id", order.ID, "session_id", session.ID, "items", len(order.Items), "grants", len(downloads))
	meter.Count("fulfillment.processed", 1)
	span.Status = sentry.SpanStatusOK
	return nil
}

func (s *FulfillmentService) createGrant(ctx context.Context, item *db.OrderItem) (*db.DownloadGrant, error) {
	downloadToken, err := token.NewDownloadToken()
	if err != nil {
		return nil, err
	}

	grant := &db.DownloadGrant{
		OrderItemID:   item.ID,
		ProductID:     item.ProductID,
		DownloadToken: downloadToken,
		DownloadCount: 0,
		MaxDownloads:  s.policy.MaxDownloads,
		ExpiresAt:     time.Now().Add(s.policy.Validity),
	}
	if err := s.downloads.CreateGrant(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

func (s *FulfillmentService) sendConfirmation(ctx context.Context, order *db.Order, downloads []email.DownloadInfo) error {
	if order.Email == "" {
		return nil
	}

	info := email.OrderInfo{
		OrderID:       order.ID.String(),
		CustomerEmail: order.Email,
		OrderDate:     order.CreatedAt.Format("January 2, 2006"),
		Subtotal:      email.FormatPrice(order.SubtotalCents),
		Shipping:      email.FormatPrice(order.ShippingCents),
		Total:         email.FormatPrice(order.TotalCents),
		Downloads:     downloads,
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, email.OrderItemInfo{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  email.FormatPrice(item.PriceCents),
			TotalPrice: email.FormatPrice(item.PriceCents * item.Quantity),
		})
	}

	return s.emailSender.SendOrderConfirmation(ctx, info)
}

func customerEmail(session *checkoutSessionPayload) string {
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}
	return session.CustomerEmail
}

func buildShippingAddress(details *stripeapi.ShippingDetails, customerDetails *stripeapi.CheckoutSessionCustomerDetails) *db.ShippingAddress {
	var address *stripeapi.Address
	name := ""
	if details != nil {
		name = details.Name
		address = details.Address
	}
	if address == nil && customerDetails != nil {
		address = customerDetails.Address
	}
	if address == nil {
		return nil
	}

	return &db.ShippingAddress{
		Name:       name,
		Line1:      address.Line1,
		Line2:      address.Line2,
		City:       address.City,
		State:      address.State,
		PostalCode: address.PostalCode,
		Country:    address.Country,
	}
}
