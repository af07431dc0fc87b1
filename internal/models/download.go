package models

import (
	"time"

	"github.com/google/uuid"
)

// DownloadGrant is the persisted entitlement for one digital order item:
// an opaque token exchangeable for the asset a bounded number of times
// before it expires.
type DownloadGrant struct {
	ID            uuid.UUID `json:"id"`
	OrderItemID   uuid.UUID `json:"order_item_id"`
	ProductID     string    `json:"product_id"`
	DownloadToken string    `json:"download_token"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// DownloadRedemption is the read model the download gate checks before
// consuming a use: grant counters joined to the parent item's captured name
// and the owning order's status.
type DownloadRedemption struct {
	GrantID       uuid.UUID
	ProductID     string
	ItemName      string
	OrderStatus   OrderStatus
	DownloadCount int
	MaxDownloads  int
	ExpiresAt     time.Time
}
