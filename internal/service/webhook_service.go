package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/digkill/TGSongBot/internal/apperrs"
	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/models"
	"github.com/digkill/TGSongBot/internal/payments"
)

// CreditNotifier tells the user their balance was topped up (implemented by telegram.Notifier).
type CreditNotifier interface {
	NotifyCredited(ctx context.Context, userID int64, lang string, credits, balance int) error
}

// EventArchiver keeps a copy of credited event payloads (implemented by storage.Archiver).
type EventArchiver interface {
	Archive(ctx context.Context, sessionID string, payload []byte) error
}

type IgnoreReason string

const (
	IgnoredEventType     IgnoreReason = "event_type"
	IgnoredNotPaid       IgnoreReason = "not_paid"
	IgnoredMissingFields IgnoreReason = "missing_fields"
)

// WebhookResult is the acknowledgment body. Exactly one of Credited and Ignored is set.
type WebhookResult struct {
	OK        bool         `json:"ok"`
	Credited  *bool        `json:"credited,omitempty"`
	Ignored   IgnoreReason `json:"ignored,omitempty"`
	EventType string       `json:"event_type,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
}

type WebhookService struct {
	cfg      config.Config
	catalog  *Catalog
	ledger   *LedgerService
	notifier CreditNotifier
	archiver EventArchiver
	log      *slog.Logger
}

func NewWebhookService(cfg config.Config, catalog *Catalog, ledger *LedgerService, log *slog.Logger) *WebhookService {
	return &WebhookService{cfg: cfg, catalog: catalog, ledger: ledger, log: log}
}

// SetNotifier enables top-up messages after a fresh credit.
func (s *WebhookService) SetNotifier(notifier CreditNotifier) {
	s.notifier = notifier
}

// SetArchiver enables payload archiving after a fresh credit.
func (s *WebhookService) SetArchiver(archiver EventArchiver) {
	s.archiver = archiver
}

// Handle verifies and processes one webhook delivery. Errors are only returned for
// missing configuration, signature failures and storage faults; everything else is
// acknowledged so Stripe stops redelivering.
func (s *WebhookService) Handle(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	if s.cfg.StripeWebhookSecret == "" {
		return nil, apperrs.Config("STRIPE_WEBHOOK_SECRET not set")
	}
	if strings.TrimSpace(signature) == "" {
		s.log.Warn("webhook rejected: missing signature header")
		return nil, apperrs.Signature("missing Stripe-Signature header", nil)
	}

	event, err := payments.ParseEvent(payload, signature, s.cfg.StripeWebhookSecret)
	if err != nil {
		s.log.Warn("webhook rejected: signature verification failed", "err", err)
		return nil, apperrs.Signature("invalid signature", err)
	}

	if event.Type != payments.EventCheckoutSessionCompleted {
		s.log.Debug("webhook event ignored", "event_id", event.ID, "event_type", event.Type)
		return &WebhookResult{OK: true, Ignored: IgnoredEventType, EventType: event.Type}, nil
	}

	checkout := event.Checkout
	if checkout == nil {
		s.log.Warn("webhook event has undecodable checkout session", "event_id", event.ID)
		return &WebhookResult{OK: true, Ignored: IgnoredMissingFields}, nil
	}
	if checkout.PaymentStatus != payments.PaymentStatusPaid {
		s.log.Info("checkout completed but not paid yet",
			"event_id", event.ID, "session_id", checkout.SessionID, "payment_status", checkout.PaymentStatus)
		return &WebhookResult{OK: true, Ignored: IgnoredNotPaid, SessionID: checkout.SessionID}, nil
	}

	purchase, ok := s.purchaseFromCheckout(checkout)
	if !ok {
		s.log.Warn("paid checkout missing crediting metadata",
			"event_id", event.ID,
			"session_id", checkout.SessionID,
			"user_id", checkout.Metadata[payments.MetadataUserID],
			"pack", checkout.Metadata[payments.MetadataPack],
		)
		return &WebhookResult{OK: true, Ignored: IgnoredMissingFields, SessionID: checkout.SessionID}, nil
	}

	outcome, err := s.ledger.Credit(ctx, purchase)
	if err != nil {
		s.log.Error("credit purchase failed", "session_id", purchase.SessionID, "user_id", purchase.UserID, "err", err)
		return nil, apperrs.Internal("credit purchase", err)
	}

	if outcome.Credited {
		s.afterCredit(ctx, purchase, outcome, payload)
	}

	credited := outcome.Credited
	return &WebhookResult{OK: true, Credited: &credited, SessionID: purchase.SessionID}, nil
}

func (s *WebhookService) purchaseFromCheckout(checkout *payments.CheckoutCompletion) (models.Purchase, bool) {
	sessionID := strings.TrimSpace(checkout.SessionID)
	rawUserID := strings.TrimSpace(checkout.Metadata[payments.MetadataUserID])
	pack := strings.TrimSpace(checkout.Metadata[payments.MetadataPack])
	if sessionID == "" || rawUserID == "" || pack == "" {
		return models.Purchase{}, false
	}

	userID, err := strconv.ParseInt(rawUserID, 10, 64)
	if err != nil || userID <= 0 {
		return models.Purchase{}, false
	}
	credits, ok := s.catalog.Credits(pack)
	if !ok {
		return models.Purchase{}, false
	}

	return models.Purchase{SessionID: sessionID, UserID: userID, Pack: pack, Credits: credits}, true
}

// afterCredit runs best-effort side effects once the credit is committed. They are
// detached from the request so a dropped connection does not cut them short.
func (s *WebhookService) afterCredit(ctx context.Context, purchase models.Purchase, outcome *CreditOutcome, payload []byte) {
	timeout := s.cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if s.archiver != nil {
		if err := s.archiver.Archive(sideCtx, purchase.SessionID, payload); err != nil {
			s.log.Error("archive webhook payload", "session_id", purchase.SessionID, "err", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyCredited(sideCtx, purchase.UserID, outcome.Lang, purchase.Credits, outcome.Balance); err != nil {
			s.log.Error("notify user about credit", "user_id", purchase.UserID, "err", err)
		}
	}
}
