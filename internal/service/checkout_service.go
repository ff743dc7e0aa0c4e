package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/digkill/TGSongBot/internal/apperrs"
	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/payments"
)

// SessionCreator is the payment provider call behind checkout creation.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, p payments.CheckoutParams) (*payments.CheckoutSession, error)
}

type CheckoutService struct {
	cfg      config.Config
	catalog  *Catalog
	provider SessionCreator
	log      *slog.Logger
}

type CreateCheckoutInput struct {
	UserID         int64
	Pack           string
	PriceID        string
	IdempotencyKey string
}

type CheckoutResult struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

func NewCheckoutService(cfg config.Config, catalog *Catalog, provider SessionCreator, log *slog.Logger) *CheckoutService {
	return &CheckoutService{cfg: cfg, catalog: catalog, provider: provider, log: log}
}

// Create validates the request against the catalog and opens a hosted checkout session.
// Nothing is stored locally; the webhook credits the purchase later.
func (s *CheckoutService) Create(ctx context.Context, in CreateCheckoutInput) (*CheckoutResult, error) {
	if s.cfg.StripeSecretKey == "" {
		return nil, apperrs.Config("STRIPE_SECRET_KEY not set")
	}
	if s.cfg.PublicBaseURL == "" {
		return nil, apperrs.Config("PUBLIC_BASE_URL not set")
	}

	if in.UserID <= 0 {
		return nil, apperrs.Invalid("user_id must be a positive integer")
	}
	pack := strings.TrimSpace(in.Pack)
	if _, ok := s.catalog.Credits(pack); !ok {
		return nil, apperrs.Invalid(fmt.Sprintf("unknown pack %q (available: %s)", in.Pack, strings.Join(s.catalog.Names(), ", ")))
	}
	priceID := strings.TrimSpace(in.PriceID)
	if priceID == "" {
		return nil, apperrs.Invalid("price_id is required")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutParams{
		UserID:         in.UserID,
		Pack:           pack,
		PriceID:        priceID,
		SuccessURL:     s.cfg.PublicBaseURL + "/checkout/success?session_id=" + payments.SessionIDPlaceholder,
		CancelURL:      s.cfg.PublicBaseURL + "/checkout/cancel",
		IdempotencyKey: key,
	})
	if err != nil {
		s.log.Warn("checkout session rejected", "user_id", in.UserID, "pack", pack, "price_id", priceID, "err", err)
		if apperrs.KindOf(err) == apperrs.KindInternal {
			err = apperrs.Provider("payment provider request failed", err)
		}
		return nil, err
	}

	s.log.Info("checkout session created", "user_id", in.UserID, "pack", pack, "session_id", sess.ID)
	return &CheckoutResult{CheckoutURL: sess.URL, SessionID: sess.ID}, nil
}
