package email

import (
	"context"
	"strings"
	"testing"
)

type capturingProvider struct {
	sent []*Email
}

func (p *capturingProvider) SendEmail(_ context.Context, email *Email) error {
	p.sent = append(p.sent, email)
	return nil
}

func (p *capturingProvider) ValidateAPIKey(context.Context) error { return nil }

func confirmedOrder() OrderInfo {
	return OrderInfo{
		OrderID:       "ord_123",
		CustomerEmail: "buyer@example.com",
		OrderDate:     "August 31, 2026",
		Items: []OrderItemInfo{
			{Name: "City Skyline Print", Quantity: 2, UnitPrice: "$15.00", TotalPrice: "$30.00"},
			{Name: "City Skyline Digital", Quantity: 1, UnitPrice: "$10.00", TotalPrice: "$10.00"},
		},
		Subtotal: "$40.00",
		Shipping: "$5.00",
		Total:    "$45.00",
	}
}

func TestSendOrderConfirmation(t *testing.T) {
	t.Parallel()

	provider := &capturingProvider{}
	info := confirmedOrder()
	info.Downloads = []DownloadInfo{
		{Name: "City Skyline Digital", URL: "https://prints.example.com/downloads/tok_abc", MaxUses: 5, ExpiresAt: "September 30, 2026"},
	}

	if err := SendOrderConfirmation(context.Background(), provider, info); err != nil {
		t.Fatal(err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(provider.sent))
	}

	sent := provider.sent[0]
	if sent.To != "buyer@example.com" {
		t.Errorf("To = %q", sent.To)
	}
	if !strings.Contains(sent.Subject, "ord_123") {
		t.Errorf("subject missing order ID: %q", sent.Subject)
	}
	for _, body := range []string{sent.Text, sent.HTML} {
		if !strings.Contains(body, "https://prints.example.com/downloads/tok_abc") {
			t.Errorf("body missing download link:\n%s", body)
		}
		if !strings.Contains(body, "$45.00") {
			t.Errorf("body missing total:\n%s", body)
		}
	}
}

func TestSendOrderConfirmationOmitsEmptyDownloadSection(t *testing.T) {
	t.Parallel()

	provider := &capturingProvider{}
	if err := SendOrderConfirmation(context.Background(), provider, confirmedOrder()); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(provider.sent[0].Text, "Your downloads") {
		t.Error("physical-only order must not render a downloads section")
	}
}

func TestSendOrderConfirmationRequiresRecipient(t *testing.T) {
	t.Parallel()

	info := confirmedOrder()
	info.CustomerEmail = ""
	if err := SendOrderConfirmation(context.Background(), &capturingProvider{}, info); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cents int
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{1500, "$15.00"},
		{4599, "$45.99"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.cents); got != tt.want {
			t.Errorf("FormatPrice(%d) = %q, want %q", tt.cents, got, tt.want)
		}
	}
}
