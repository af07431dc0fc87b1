package services

import (
	"context"

	"github.com/printhausapp/printhaus/internal/email"
)

type OrderEmailSender interface {
	SendOrderConfirmation(ctx context.Context, info email.OrderInfo) error
}

// ProviderOrderEmailSender sends order emails through a configured provider.
type ProviderOrderEmailSender struct {
	provider email.Provider
}

func NewProviderOrderEmailSender(provider email.Provider) *ProviderOrderEmailSender {
	return &ProviderOrderEmailSender{provider: provider}
}

func (s *ProviderOrderEmailSender) SendOrderConfirmation(ctx context.Context, info email.OrderInfo) error {
	return email.SendOrderConfirmation(ctx, s.provider, info)
}

type noopOrderEmailSender struct{}

func (noopOrderEmailSender) SendOrderConfirmation(context.Context, email.OrderInfo) error {
	return nil
}
