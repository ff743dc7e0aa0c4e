package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/digkill/TGSongBot/internal/apperrs"
)

const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	PaymentStatusPaid             = "paid"

	// SessionIDPlaceholder is substituted by Stripe with the real session id at redirect time.
	SessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

	MetadataUserID = "user_id"
	MetadataPack   = "pack"
)

type CheckoutParams struct {
	UserID         int64
	Pack           string
	PriceID        string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// Client creates Stripe Checkout Sessions with a bounded HTTP timeout and no
// client-side network retries.
type Client struct {
	sessions *session.Client
}

func NewClient(secretKey string, timeout time.Duration, log *slog.Logger) *Client {
	return NewClientWithBackend(secretKey, NewBackend("", timeout, log))
}

func NewClientWithBackend(secretKey string, backend stripe.Backend) *Client {
	return &Client{
		sessions: &session.Client{B: backend, Key: secretKey},
	}
}

// NewBackend builds a Stripe API backend. An empty url means the public Stripe API.
func NewBackend(url string, timeout time.Duration, log *slog.Logger) stripe.Backend {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     slogLeveledLogger{log: log},
	}
	if url != "" {
		cfg.URL = stripe.String(url)
	}
	return stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
}

// CreateCheckoutSession opens a one-time payment session for a single price. The user
// and pack travel as session metadata so the webhook can credit without a lookup.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	userID := strconv.FormatInt(p.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(userID),
		Metadata: map[string]string{
			MetadataUserID: userID,
			MetadataPack:   p.Pack,
		},
	}
	params.Context = ctx
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	sess, err := c.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
			return nil, apperrs.Provider(stripeErr.Msg, err)
		}
		return nil, apperrs.Provider("payment provider request failed", err)
	}
	if sess.ID == "" || sess.URL == "" {
		return nil, apperrs.Provider("payment provider returned an incomplete session", nil)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// Event is the verified subset of a Stripe event this service acts on.
type Event struct {
	ID   string
	Type string
	// Checkout is set for checkout.session.completed events whose object decoded cleanly.
	Checkout *CheckoutCompletion
}

type CheckoutCompletion struct {
	SessionID     string
	PaymentStatus string
	Metadata      map[string]string
}

// ParseEvent verifies the Stripe-Signature header against secret and only then decodes
// the payload. Verification errors are returned unwrapped.
func ParseEvent(payload []byte, signature, secret string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &Event{ID: event.ID, Type: string(event.Type)}
	if out.Type != EventCheckoutSessionCompleted || event.Data == nil {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return out, nil
	}
	out.Checkout = &CheckoutCompletion{
		SessionID:     sess.ID,
		PaymentStatus: string(sess.PaymentStatus),
		Metadata:      sess.Metadata,
	}
	return out, nil
}

type slogLeveledLogger struct {
	log *slog.Logger
}

func (l slogLeveledLogger) logf(level slog.Level, format string, v ...interface{}) {
	if l.log == nil {
		return
	}
	l.log.Log(context.Background(), level, fmt.Sprintf(format, v...), "component", "stripe")
}

func (l slogLeveledLogger) Debugf(format string, v ...interface{}) {
	l.logf(slog.LevelDebug, format, v...)
}

func (l slogLeveledLogger) Infof(format string, v ...interface{}) {
	l.logf(slog.LevelDebug, format, v...)
}

func (l slogLeveledLogger) Warnf(format string, v ...interface{}) {
	l.logf(slog.LevelWarn, format, v...)
}

func (l slogLeveledLogger) Errorf(format string, v ...interface{}) {
	l.logf(slog.LevelError, format, v...)
}
