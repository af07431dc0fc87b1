package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"

	"github.com/printhausapp/printhaus/internal/assets"
	"github.com/printhausapp/printhaus/internal/db"
	"github.com/printhausapp/printhaus/internal/logging"
	"github.com/printhausapp/printhaus/internal/observability"
)

var (
	ErrDownloadNotFound = errors.New("download not found")

	// Forbidden-class redemption failures. The handler maps each to a 403
	// with a specific reason; none of them consume a use.
	ErrOrderNotPaid      = errors.New("order not paid")
	ErrDownloadExpired   = errors.New("download link has expired")
	ErrDownloadExhausted = errors.New("download limit reached")
)

type redemptionStore interface {
	GetRedemptionByToken(ctx context.Context, token string) (*db.DownloadRedemption, error)
	ConsumeUse(ctx context.Context, grantID uuid.UUID) (int, error)
}

type assetResolver interface {
	Resolve(productID, itemName string) (*assets.Asset, error)
}

type DownloadService struct {
	downloads redemptionStore
	assets    assetResolver
	logger    *slog.Logger
}

func NewDownloadService(downloads redemptionStore, assetStore assetResolver, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		downloads: downloads,
		assets:    assetStore,
		logger:    logger,
	}
}

func (s *DownloadService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// Redeem exchanges a download token for the underlying asset, consuming
// exactly one use. The count increment is conditional at the storage layer,
// so two racing redemptions of a nearly-exhausted grant cannot both succeed.
func (s *DownloadService) Redeem(ctx context.Context, token string) (*assets.Asset, error) {
	span := sentry.StartSpan(
		ctx,
		"service.download.redeem",
		sentry.WithOpName("service.download"),
		sentry.WithDescription("Redeem"),
		sentry.WithSpanOrigin(sentry.SpanOriginManual),
	)
	defer span.Finish()
	ctx = span.Context()

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)
	meter.Count("download.redeem.received", 1)
	recordDenied := func(reason string) {
		meter.Count("download.redeem.denied", 1, sentry.WithAttributes(attribute.String("reason", reason)))
	}

	redemption, err := s.downloads.GetRedemptionByToken(ctx, token)
	if errors.Is(err, db.ErrGrantNotFound) {
		recordDenied("not_found")
		return nil, ErrDownloadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up download grant: %w", err)
	}

	if redemption.OrderStatus != db.StatusPaid {
		recordDenied("order_not_paid")
		return nil, fmt.Errorf("%w: order status is %s", ErrOrderNotPaid, redemption.OrderStatus)
	}
	if time.Now().After(redemption.ExpiresAt) {
		recordDenied("expired")
		return nil, ErrDownloadExpired
	}
	if redemption.DownloadCount >= redemption.MaxDownloads {
		recordDenied("exhausted")
		return nil, ErrDownloadExhausted
	}

	count, err := s.downloads.ConsumeUse(ctx, redemption.GrantID)
	if errors.Is(err, db.ErrLimitExhausted) {
		// Lost a race against a concurrent redemption of the same token.
		recordDenied("exhausted")
		return nil, ErrDownloadExhausted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume download use: %w", err)
	}

	asset, err := s.assets.Resolve(redemption.ProductID, redemption.ItemName)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset: %w", err)
	}

	logger.Info("download redeemed", "grant_id", redemption.GrantID, "downloads_used", count, "max_downloads", redemption.MaxDownloads)
	meter.Count("download.redeem.served", 1)
	span.Status = sentry.SpanStatusOK
	return asset, nil
}
