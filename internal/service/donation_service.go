package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	pkgstripe "github.com/portfolio/backend/pkg/stripe"
)

const (
	minDonationAmount = 100
	maxDonationAmount = 1_000_000
)

var allowedCurrencies = map[string]bool{"usd": true, "eur": true, "gbp": true}

// ErrPaymentsUnavailable is returned when Stripe is not configured.
var ErrPaymentsUnavailable = errors.New("payments unavailable")

// CheckoutRequest は POST /api/donations/checkout のリクエスト
type CheckoutRequest struct {
	Amount   int // smallest currency unit
	Currency string
	Name     string
	Email    string
	Message  string
}

// DonationService handles one-off donations through Stripe Checkout.
type DonationService interface {
	// Checkout validates the request and returns a hosted checkout URL.
	Checkout(ctx context.Context, req CheckoutRequest) (string, error)
	// ProcessWebhook verifies and handles a Stripe webhook delivery.
	ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) error
}

type donationService struct {
	client      pkgstripe.Client
	frontendURL string
}

// NewDonationService creates a DonationService.
func NewDonationService(client pkgstripe.Client, frontendURL string) DonationService {
	return &donationService{client: client, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (s *donationService) Checkout(ctx context.Context, req CheckoutRequest) (string, error) {
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}
	switch {
	case req.Amount < minDonationAmount:
		return "", &ValidationError{Field: "amount", Code: "amount_too_small"}
	case req.Amount > maxDonationAmount:
		return "", &ValidationError{Field: "amount", Code: "amount_too_large"}
	case !allowedCurrencies[currency]:
		return "", &ValidationError{Field: "currency", Code: "currency_unsupported"}
	case req.Email != "" && !emailPattern.MatchString(strings.TrimSpace(req.Email)):
		return "", &ValidationError{Field: "email", Code: "email_invalid"}
	case utf8.RuneCountInString(req.Message) > 500:
		return "", &ValidationError{Field: "message", Code: "message_too_long"}
	}

	meta := map[string]string{"source": "portfolio"}
	if name := strings.TrimSpace(req.Name); name != "" {
		meta["donor_name"] = name
	}
	if msg := strings.TrimSpace(req.Message); msg != "" {
		meta["message"] = msg
	}

	url, err := s.client.CreateCheckoutSession(ctx, pkgstripe.CheckoutParams{
		Amount:     req.Amount,
		Currency:   currency,
		SuccessURL: s.frontendURL + "/donate/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.frontendURL + "/donate",
		Email:      strings.TrimSpace(req.Email),
		Metadata:   meta,
	})
	if err != nil {
		if errors.Is(err, pkgstripe.ErrNotConfigured) {
			return "", ErrPaymentsUnavailable
		}
		return "", err
	}
	return url, nil
}

func (s *donationService) ProcessWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if err := s.client.VerifyWebhookSignature(payload, sigHeader); err != nil {
		return err
	}
	event, err := s.client.ParseWebhookEvent(payload)
	if err != nil {
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		obj := event.Data.Object
		slog.InfoContext(ctx, "donation completed",
			"event_id", event.ID,
			"session_id", obj.ID,
			"amount", obj.AmountTotal,
			"currency", obj.Currency,
			"payment_status", obj.PaymentStatus,
		)
	default:
		slog.DebugContext(ctx, "stripe webhook ignored", "event_id", event.ID, "type", event.Type)
	}
	return nil
}
