// Package stripe is a small Stripe API client for one-off donations.
// It speaks the form-encoded REST API directly over net/http.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.stripe.com"
	// signatureTolerance bounds the age of a webhook timestamp.
	signatureTolerance = 5 * time.Minute
)

// ErrNotConfigured is returned when the required key or secret is empty.
var ErrNotConfigured = errors.New("stripe: not configured")

// ErrInvalidSignature is returned when a webhook signature does not verify.
var ErrInvalidSignature = errors.New("stripe: invalid signature")

// CheckoutParams describes a one-off donation checkout session.
type CheckoutParams struct {
	Amount      int    // smallest currency unit
	Currency    string // ISO code, lower case
	ProductName string
	SuccessURL  string
	CancelURL   string
	Email       string            // optional customer_email prefill
	Metadata    map[string]string // copied to the session
}

// WebhookEventObject is the data.object of a checkout.session event.
type WebhookEventObject struct {
	ID            string            `json:"id"`
	AmountTotal   int               `json:"amount_total"`
	Currency      string            `json:"currency"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

// WebhookEvent is a Stripe webhook envelope.
type WebhookEvent struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data struct {
		Object WebhookEventObject `json:"object"`
	} `json:"data"`
}

// Client is the subset of the Stripe API used for donations.
type Client interface {
	// CreateCheckoutSession creates a hosted checkout page and returns its URL.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	// VerifyWebhookSignature checks the Stripe-Signature header against payload.
	VerifyWebhookSignature(payload []byte, sigHeader string) error
	// ParseWebhookEvent decodes a webhook payload.
	ParseWebhookEvent(payload []byte) (WebhookEvent, error)
}

// RealClient talks to the Stripe REST API.
type RealClient struct {
	SecretKey     string
	WebhookSecret string // whsec_...
	baseURL       string
	httpClient    *http.Client
	now           func() time.Time
}

// NewClient creates a RealClient. Empty credentials yield ErrNotConfigured
// from the methods that need them.
func NewClient(secretKey, webhookSecret string) *RealClient {
	return &RealClient{
		SecretKey:     secretKey,
		WebhookSecret: webhookSecret,
		baseURL:       defaultBaseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		now:           time.Now,
	}
}

var _ Client = (*RealClient)(nil)

// Configured reports whether checkout sessions can be created.
func (c *RealClient) Configured() bool { return c.SecretKey != "" }

func (c *RealClient) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	if c.SecretKey == "" {
		return "", ErrNotConfigured
	}

	name := params.ProductName
	if name == "" {
		name = "Donation"
	}
	data := url.Values{}
	data.Set("mode", "payment")
	data.Set("line_items[0][price_data][product_data][name]", name)
	data.Set("line_items[0][price_data][currency]", params.Currency)
	data.Set("line_items[0][price_data][unit_amount]", strconv.Itoa(params.Amount))
	data.Set("line_items[0][quantity]", "1")
	data.Set("success_url", params.SuccessURL)
	data.Set("cancel_url", params.CancelURL)
	if params.Email != "" {
		data.Set("customer_email", params.Email)
	}
	for k, v := range params.Metadata {
		data.Set("metadata["+k+"]", v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.SecretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stripe checkout: %w", err)
	}
	defer resp.Body.Close()

	var session struct {
		URL   string `json:"url"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("stripe checkout: decode: %w", err)
	}
	if session.Error != nil {
		return "", fmt.Errorf("stripe checkout error: %s", session.Error.Message)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("stripe checkout: status %d", resp.StatusCode)
	}
	return session.URL, nil
}

// VerifyWebhookSignature validates a "t=...,v1=..." header with HMAC-SHA256
// and rejects timestamps older than five minutes.
func (c *RealClient) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	if c.WebhookSecret == "" {
		return ErrNotConfigured
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signatures = append(signatures, v)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed header", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if c.now().Sub(time.Unix(ts, 0)) > signatureTolerance {
		return fmt.Errorf("%w: timestamp too old", ErrInvalidSignature)
	}

	expected := Sign(c.WebhookSecret, timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign returns the hex v1 signature for payload at timestamp.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *RealClient) ParseWebhookEvent(payload []byte) (WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return WebhookEvent{}, err
	}
	return event, nil
}
