package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// EventPayload renders a Stripe event envelope around object.
func EventPayload(t *testing.T, eventID, eventType string, object map[string]any) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"created":     time.Now().Unix(),
		"livemode":    false,
		"data": map[string]any{
			"object": object,
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

// CheckoutCompletedPayload renders a checkout.session.completed event.
func CheckoutCompletedPayload(t *testing.T, sessionID, paymentStatus string, metadata map[string]string) []byte {
	t.Helper()

	return EventPayload(t, "evt_"+sessionID, "checkout.session.completed", map[string]any{
		"id":             sessionID,
		"object":         "checkout.session",
		"mode":           "payment",
		"payment_status": paymentStatus,
		"status":         "complete",
		"metadata":       metadata,
	})
}

// SignPayload returns a valid Stripe-Signature header for payload.
func SignPayload(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}
