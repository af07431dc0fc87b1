package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/printhausapp/printhaus/internal/assets"
	"github.com/printhausapp/printhaus/internal/db"
	"github.com/printhausapp/printhaus/internal/services"
)

type stubRedemptionStore struct {
	redemptions map[string]*db.DownloadRedemption
}

func (s *stubRedemptionStore) GetRedemptionByToken(_ context.Context, token string) (*db.DownloadRedemption, error) {
	redemption, ok := s.redemptions[token]
	if !ok {
		return nil, db.ErrGrantNotFound
	}
	copied := *redemption
	return &copied, nil
}

func (s *stubRedemptionStore) ConsumeUse(_ context.Context, grantID uuid.UUID) (int, error) {
	for _, redemption := range s.redemptions {
		if redemption.GrantID == grantID {
			if redemption.DownloadCount >= redemption.MaxDownloads {
				return 0, db.ErrLimitExhausted
			}
			redemption.DownloadCount++
			return redemption.DownloadCount, nil
		}
	}
	return 0, db.ErrGrantNotFound
}

type stubAssetResolver struct{}

func (stubAssetResolver) Resolve(productID, itemName string) (*assets.Asset, error) {
	return &assets.Asset{
		Content:     []byte("print file contents"),
		ContentType: "application/pdf",
		Filename:    "city_skyline.pdf",
	}, nil
}

func newDownloadRouter(t *testing.T, store *stubRedemptionStore) *mux.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := &Handlers{
		downloadService: services.NewDownloadService(store, stubAssetResolver{}, logger),
		logger:          logger,
	}
	router := mux.NewRouter()
	router.HandleFunc("/downloads/{token}", h.Download).Methods("GET")
	return router
}

func paidRedemption() *db.DownloadRedemption {
	return &db.DownloadRedemption{
		GrantID:       uuid.New(),
		ProductID:     "prod_digital",
		ItemName:      "City Skyline",
		OrderStatus:   db.StatusPaid,
		DownloadCount: 0,
		MaxDownloads:  5,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
	}
}

func TestDownloadServesAsset(t *testing.T) {
	t.Parallel()

	store := &stubRedemptionStore{redemptions: map[string]*db.DownloadRedemption{"tok_valid": paidRedemption()}}
	router := newDownloadRouter(t, store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/downloads/tok_valid", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, `filename="city_skyline.pdf"`) {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Body.String() != "print file contents" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if store.redemptions["tok_valid"].DownloadCount != 1 {
		t.Errorf("download count = %d, want 1", store.redemptions["tok_valid"].DownloadCount)
	}
}

func TestDownloadStatusCodes(t *testing.T) {
	t.Parallel()

	expired := paidRedemption()
	expired.ExpiresAt = time.Now().Add(-time.Hour)

	unpaid := paidRedemption()
	unpaid.OrderStatus = db.StatusPending

	exhausted := paidRedemption()
	exhausted.DownloadCount = 5

	store := &stubRedemptionStore{redemptions: map[string]*db.DownloadRedemption{
		"tok_expired":   expired,
		"tok_unpaid":    unpaid,
		"tok_exhausted": exhausted,
	}}
	router := newDownloadRouter(t, store)

	tests := []struct {
		name        string
		token       string
		wantStatus  int
		wantMessage string
	}{
		{"unknown token", "tok_missing", 404, "Download not found"},
		{"unpaid order", "tok_unpaid", 403, "Order not paid"},
		{"expired grant", "tok_expired", 403, "Download link has expired"},
		{"exhausted grant", "tok_exhausted", 403, "Download limit reached"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", "/downloads/"+tt.token, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantMessage) {
				t.Errorf("body = %q, want message %q", rec.Body.String(), tt.wantMessage)
			}
		})
	}
}
