package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/printhausapp/printhaus/internal/logging"
	"github.com/printhausapp/printhaus/internal/observability"
)

// FulfillmentHandler processes one verified checkout-completion payload.
type FulfillmentHandler interface {
	HandleCheckoutSessionCompleted(ctx context.Context, payload []byte) error
}

type StripeEventRouter struct {
	fulfillment FulfillmentHandler
	logger      *slog.Logger
}

func NewStripeEventRouter(fulfillment FulfillmentHandler, logger *slog.Logger) *StripeEventRouter {
	return &StripeEventRouter{
		fulfillment: fulfillment,
		logger:      logger,
	}
}

// Handle dispatches a verified event. Only checkout.session.completed
// triggers fulfillment; every other type is acknowledged and ignored so
// Stripe does not treat unknown-but-valid events as delivery failures.
func (r *StripeEventRouter) Handle(ctx context.Context, event *stripeapi.Event) error {
	span := sentry.StartSpan(
		ctx,
		"handler.stripe_router.handle",
		sentry.WithOpName("handler.stripe_router"),
		sentry.WithDescription("StripeEventRouter.Handle"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	meter := observability.MeterFromContext(ctx)
	meter.SetAttributes(attribute.String("webhook.provider", "stripe"))
	meter.Count("webhook.router.received", 1)

	if event == nil {
		meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", "missing_event")))
		return fmt.Errorf("missing stripe event")
	}
	if event.Data == nil {
		meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", "missing_event_data")))
		return fmt.Errorf("missing stripe event data")
	}
	meter.SetAttributes(attribute.String("webhook.event_type", string(event.Type)))

	logger := logging.FromContext(ctx, r.logger)

	switch event.Type {
	case "checkout.session.completed":
		if err := r.fulfillment.HandleCheckoutSessionCompleted(ctx, event.Data.Raw); err != nil {
			meter.Count("webhook.router.failed", 1, sentry.WithAttributes(attribute.String("reason", "checkout_session_completed_failed")))
			return err
		}
		meter.Count("webhook.router.processed", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	default:
		logger.Info("ignoring Stripe event type", "type", event.Type)
		meter.Count("webhook.router.unhandled", 1)
		span.Status = sentry.SpanStatusOK
		return nil
	}
}
