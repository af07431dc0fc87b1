package handlers

import (
	"net/http"
	"time"

	"github.com/printhausapp/printhaus/internal/cache"
	stripewebhook "github.com/printhausapp/printhaus/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

// StripeWebhook authenticates and routes one webhook delivery. Verification
// failures are 400s so Stripe stops resending garbage; processing failures
// are 500s so Stripe redelivers the event.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripewebhook.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	if err != nil {
		logger.Error("failed to read Stripe webhook payload", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid webhook")
		return
	}

	if event.ID == "" {
		logger.Error("missing Stripe event ID")
		writeJSONError(w, http.StatusBadRequest, "Missing event ID")
		return
	}

	cacheKey := cache.WebhookKey("stripe", event.ID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "event_id", event.ID)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if processErr := h.stripeRouter.Handle(ctx, event); processErr != nil {
		logger.Error("failed to process Stripe webhook", "error", processErr, "type", event.Type)
		writeJSONError(w, http.StatusInternalServerError, "Processing failed")
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", stripeWebhookIdempotencyTTL); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
