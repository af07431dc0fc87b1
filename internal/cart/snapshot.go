// Package cart decodes the cart snapshot the checkout collaborator embeds in
// Stripe session metadata.
package cart

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// SnapshotItem is one line of the cart as it stood at checkout time. Name,
// price, and the digital flag are captured values, deliberately insulated
// from later catalog changes.
type SnapshotItem struct {
	ProductID  string `json:"productId" validate:"required"`
	Name       string `json:"name" validate:"required"`
	PriceCents int    `json:"price_cents" validate:"min=0"`
	Quantity   int    `json:"quantity" validate:"min=1"`
	IsDigital  bool   `json:"is_digital"`
}

// snapshotEnvelope is the versioned encoding. The checkout collaborator
// historically emitted a bare item array; Decode accepts both.
type snapshotEnvelope struct {
	Version int            `json:"v"`
	Items   []SnapshotItem `json:"items"`
}

const currentVersion = 1

var itemValidator = validator.New()

// Decode parses the metadata payload into snapshot items. Invalid items are
// reported alongside the valid ones so the caller can log and continue; a
// payload that cannot be parsed at all is an error the caller downgrades to
// an empty cart rather than failing the event.
func Decode(payload string) ([]SnapshotItem, []error) {
	if payload == "" {
		return nil, nil
	}

	var envelope snapshotEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil || envelope.Items == nil {
		// Legacy encoding: a bare array of items.
		var items []SnapshotItem
		if legacyErr := json.Unmarshal([]byte(payload), &items); legacyErr != nil {
			return nil, []error{fmt.Errorf("unrecognized cart snapshot payload: %w", legacyErr)}
		}
		envelope.Items = items
	}
	if envelope.Version > currentVersion {
		return nil, []error{fmt.Errorf("unsupported cart snapshot version: %d", envelope.Version)}
	}

	valid := make([]SnapshotItem, 0, len(envelope.Items))
	var invalid []error
	for i, item := range envelope.Items {
		if err := itemValidator.Struct(item); err != nil {
			invalid = append(invalid, fmt.Errorf("cart item %d invalid: %w", i, err))
			continue
		}
		valid = append(valid, item)
	}
	return valid, invalid
}

// Encode renders items in the versioned envelope. Only the checkout
// collaborator calls this in production; tests use it to build fixtures.
func Encode(items []SnapshotItem) (string, error) {
	payload, err := json.Marshal(snapshotEnvelope{Version: currentVersion, Items: items})
	if err != nil {
		return "", fmt.Errorf("failed to encode cart snapshot: %w", err)
	}
	return string(payload), nil
}

// SubtotalCents sums captured unit price times quantity over the snapshot.
func SubtotalCents(items []SnapshotItem) int {
	subtotal := 0
	for _, item := range items {
		subtotal += item.PriceCents * item.Quantity
	}
	return subtotal
}
