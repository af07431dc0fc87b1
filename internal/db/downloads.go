package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/printhausapp/printhaus/internal/models"
)

type DownloadStore struct {
	pool *pgxpool.Pool
}

var (
	ErrGrantNotFound = errors.New("download grant not found")

	// ErrLimitExhausted is returned by ConsumeUse when the conditional
	// increment matched no row: the grant was already at its limit, possibly
	// because a concurrent redemption won the race.
	ErrLimitExhausted = errors.New("download limit exhausted")
)

func NewDownloadStore(pool *pgxpool.Pool) *DownloadStore {
	return &DownloadStore{pool: pool}
}

// CreateGrant inserts one grant for a digital order item and fills in the
// generated id and timestamps.
func (s *DownloadStore) CreateGrant(ctx context.Context, grant *DownloadGrant) error {
	query := `
		INSERT INTO digital_downloads (order_item_id, product_id, download_token,
		    download_count, max_downloads, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	var createdAt pgtype.Timestamptz
	err := s.pool.QueryRow(ctx, query,
		grant.OrderItemID,
		textOrNull(grant.ProductID),
		grant.DownloadToken,
		grant.DownloadCount,
		grant.MaxDownloads,
		grant.ExpiresAt,
	).Scan(&grant.ID, &createdAt)
	if err != nil {
		return err
	}
	grant.CreatedAt = createdAt.Time
	return nil
}

// GetRedemptionByToken loads the projection the download gate validates:
// the grant joined to its parent item's captured name and the owning
// order's status.
func (s *DownloadStore) GetRedemptionByToken(ctx context.Context, token string) (*DownloadRedemption, error) {
	query := `
		SELECT d.id, d.product_id, d.download_count, d.max_downloads, d.expires_at,
		       i.name, o.status
		FROM digital_downloads d
		JOIN order_items i ON i.id = d.order_item_id
		JOIN orders o ON o.id = i.order_id
		WHERE d.download_token = $1
	`
	var (
		redemption DownloadRedemption
		productID  pgtype.Text
		expiresAt  pgtype.Timestamptz
		status     string
	)
	err := s.pool.QueryRow(ctx, query, token).Scan(
		&redemption.GrantID,
		&productID,
		&redemption.DownloadCount,
		&redemption.MaxDownloads,
		&expiresAt,
		&redemption.ItemName,
		&status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrGrantNotFound
	}
	if err != nil {
		return nil, err
	}

	if productID.Valid {
		redemption.ProductID = productID.String
	}
	redemption.ExpiresAt = expiresAt.Time
	redemption.OrderStatus = models.OrderStatus(status)
	return &redemption, nil
}

// ConsumeUse increments download_count by one, guarded at the storage layer
// so concurrent redemptions of the same token can never push the count past
// max_downloads.
func (s *DownloadStore) ConsumeUse(ctx context.Context, grantID uuid.UUID) (int, error) {
	query := `
		UPDATE digital_downloads
		SET download_count = download_count + 1
		WHERE id = $1 AND download_count < max_downloads
		RETURNING download_count
	`
	var count int
	err := s.pool.QueryRow(ctx, query, grantID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrLimitExhausted
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
