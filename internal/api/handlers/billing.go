package handlers

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/mediakit/backend/internal/billing"
)

// maxWebhookBody bounds a Stripe webhook payload
const maxWebhookBody = int64(65536)

// BillingHandler receives Stripe webhook deliveries
type BillingHandler struct {
	service *billing.Service
}

// NewBillingHandler creates a new billing webhook handler
func NewBillingHandler(service *billing.Service) *BillingHandler {
	return &BillingHandler{service: service}
}

// StripeWebhook handles subscription lifecycle events from Stripe.
// POST /webhooks/stripe
func (h *BillingHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Failed to read webhook payload")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.service.HandleEvent(r.Context(), payload, signature); err != nil {
		if errors.Is(err, billing.ErrInvalidSignature) {
			writeError(w, http.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
			return
		}
		// A 5xx makes Stripe retry the delivery later.
		log.Printf("[billing] webhook processing failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", "Failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"received": true})
}
