package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/printhausapp/printhaus/internal/cache"
	"github.com/printhausapp/printhaus/internal/config"
)

const testWebhookSecret = "whsec_test_secret"

type stubFulfillment struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *stubFulfillment) HandleCheckoutSessionCompleted(_ context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *stubFulfillment) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func newWebhookHandlers(t *testing.T, fulfillment *stubFulfillment) *Handlers {
	t.Helper()

	cacheProvider, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &Handlers{
		config:        &config.Config{StripeWebhookSecret: testWebhookSecret},
		cacheProvider: cacheProvider,
		stripeRouter:  NewStripeEventRouter(fulfillment, logger),
		logger:        logger,
	}
}

func signedEvent(t *testing.T, eventID, eventType string) ([]byte, string) {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"api_version": "2026-01-28.clover",
		"type":        eventType,
		"data":        map[string]any{"object": map[string]any{"id": "cs_test", "object": "checkout.session"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return payload, signed.Header
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{}
	h := newWebhookHandlers(t, fulfillment)

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()

	h.StripeWebhook(rec, req)

	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if fulfillment.calls() != 0 {
		t.Fatal("fulfillment must not run for an unverified payload")
	}
}

func TestStripeWebhookProcessesCompletionEvent(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{}
	h := newWebhookHandlers(t, fulfillment)

	payload, signature := signedEvent(t, "evt_completed", "checkout.session.completed")
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()

	h.StripeWebhook(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body["received"] {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if fulfillment.calls() != 1 {
		t.Fatalf("fulfillment calls = %d, want 1", fulfillment.calls())
	}
}

func TestStripeWebhookAcknowledgesIgnoredTypes(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{}
	h := newWebhookHandlers(t, fulfillment)

	payload, signature := signedEvent(t, "evt_other", "payment_intent.created")
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()

	h.StripeWebhook(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if fulfillment.calls() != 0 {
		t.Fatal("ignored event type must not trigger fulfillment")
	}
}

func TestStripeWebhookDeduplicatesEventIDs(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{}
	h := newWebhookHandlers(t, fulfillment)

	payload, signature := signedEvent(t, "evt_dup", "checkout.session.completed")
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
		req.Header.Set("Stripe-Signature", signature)
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, req)
		if rec.Code != 200 {
			t.Fatalf("delivery %d: status = %d, want 200", i, rec.Code)
		}
	}

	if fulfillment.calls() != 1 {
		t.Fatalf("fulfillment calls = %d, want 1 after duplicate delivery", fulfillment.calls())
	}
}

func TestStripeWebhookProcessingFailureIsRetryable(t *testing.T) {
	t.Parallel()

	fulfillment := &stubFulfillment{err: context.DeadlineExceeded}
	h := newWebhookHandlers(t, fulfillment)

	payload, signature := signedEvent(t, "evt_fail", "checkout.session.completed")
	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec := httptest.NewRecorder()

	h.StripeWebhook(rec, req)

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500 so the provider redelivers", rec.Code)
	}

	// The failed event must not be marked processed; a retry goes through.
	fulfillment.err = nil
	req = httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signature)
	rec = httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != 200 {
		t.Fatalf("retry status = %d, want 200", rec.Code)
	}
	if fulfillment.calls() != 1 {
		t.Fatalf("fulfillment calls = %d, want 1", fulfillment.calls())
	}
}
