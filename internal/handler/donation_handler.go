package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/portfolio/backend/internal/service"
	pkgstripe "github.com/portfolio/backend/pkg/stripe"
)

const maxWebhookPayload = 64 << 10

// DonationHandler handles Stripe checkout creation and webhook delivery.
type DonationHandler struct {
	svc service.DonationService
}

// NewDonationHandler creates a DonationHandler.
func NewDonationHandler(svc service.DonationService) *DonationHandler {
	return &DonationHandler{svc: svc}
}

type checkoutRequest struct {
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// Checkout handles POST /api/donations/checkout.
func (h *DonationHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	url, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Name:     req.Name,
		Email:    req.Email,
		Message:  req.Message,
	})
	if errors.Is(err, service.ErrPaymentsUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "payments_unavailable")
		return
	}
	if err != nil {
		writeServiceError(w, r, "create checkout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Webhook handles POST /api/webhooks/stripe.
func (h *DonationHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookPayload))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	err = h.svc.ProcessWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	case errors.Is(err, pkgstripe.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_signature")
	case errors.Is(err, pkgstripe.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payments_unavailable")
	default:
		slog.ErrorContext(r.Context(), "stripe webhook failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_payload")
	}
}
