// Package email provides email templates.
package email

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
)

// OrderInfo contains everything the order confirmation template renders.
type OrderInfo struct {
	OrderID       string
	CustomerEmail string
	OrderDate     string
	Items         []OrderItemInfo
	Subtotal      string
	Shipping      string
	Total         string
	Downloads     []DownloadInfo
}

// OrderItemInfo represents a single purchased line.
type OrderItemInfo struct {
	Name       string
	Quantity   int
	UnitPrice  string
	TotalPrice string
}

// DownloadInfo is one redeemable download link for a digital item.
type DownloadInfo struct {
	Name      string
	URL       string
	MaxUses   int
	ExpiresAt string
}

const orderConfirmationText = `Thanks for your order!

Order {{.OrderID}} placed on {{.OrderDate}}.

Items:
{{range .Items}}  {{.Name}} x{{.Quantity}}: {{.TotalPrice}}
{{end}}
Subtotal: {{.Subtotal}}
Shipping: {{.Shipping}}
Total:    {{.Total}}
{{if .Downloads}}
Your downloads:
{{range .Downloads}}  {{.Name}}: {{.URL}}
    (up to {{.MaxUses}} downloads, valid until {{.ExpiresAt}})
{{end}}{{end}}`

const orderConfirmationHTML = `<h2>Thanks for your order!</h2>
<p>Order <strong>{{.OrderID}}</strong> placed on {{.OrderDate}}.</p>
<table>
{{range .Items}}<tr><td>{{.Name}} ×{{.Quantity}}</td><td>{{.TotalPrice}}</td></tr>
{{end}}<tr><td>Subtotal</td><td>{{.Subtotal}}</td></tr>
<tr><td>Shipping</td><td>{{.Shipping}}</td></tr>
<tr><td><strong>Total</strong></td><td><strong>{{.Total}}</strong></td></tr>
</table>
{{if .Downloads}}<h3>Your downloads</h3>
<ul>
{{range .Downloads}}<li><a href="{{.URL}}">{{.Name}}</a> (up to {{.MaxUses}} downloads, valid until {{.ExpiresAt}})</li>
{{end}}</ul>{{end}}`

var (
	confirmationSubject = template.Must(template.New("subject").Parse("Order Confirmed - {{.OrderID}}"))
	confirmationText    = template.Must(template.New("text").Parse(orderConfirmationText))
	confirmationHTML    = template.Must(template.New("html").Parse(orderConfirmationHTML))
)

// SendOrderConfirmation renders and sends the confirmation email.
func SendOrderConfirmation(ctx context.Context, provider Provider, info OrderInfo) error {
	if provider == nil {
		return fmt.Errorf("email provider is required")
	}
	if info.CustomerEmail == "" {
		return fmt.Errorf("customer email is required")
	}

	subject, err := render(confirmationSubject, info)
	if err != nil {
		return err
	}
	text, err := render(confirmationText, info)
	if err != nil {
		return err
	}
	html, err := render(confirmationHTML, info)
	if err != nil {
		return err
	}

	return provider.SendEmail(ctx, &Email{
		To:      info.CustomerEmail,
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
}

func render(tmpl *template.Template, info OrderInfo) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, info); err != nil {
		return "", fmt.Errorf("failed to render email template %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// FormatPrice renders minor currency units as dollars for templates.
func FormatPrice(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
