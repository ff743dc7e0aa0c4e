package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/digkill/TGSongBot/internal/apperrs"
	"github.com/digkill/TGSongBot/internal/config"
	"github.com/digkill/TGSongBot/internal/database"
	"github.com/digkill/TGSongBot/internal/payments"
	"github.com/digkill/TGSongBot/internal/repository"
	"github.com/digkill/TGSongBot/internal/service"
	"github.com/digkill/TGSongBot/internal/testutil"
)

const webhookSecret = "whsec_server_test"

type stubProvider struct {
	calls int
	err   error
}

func (p *stubProvider) CreateCheckoutSession(_ context.Context, params payments.CheckoutParams) (*payments.CheckoutSession, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

type failingPinger struct{}

func (failingPinger) PingContext(context.Context) error { return errors.New("connection refused") }

type fixture struct {
	handler  http.Handler
	db       *database.DB
	provider *stubProvider
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := testutil.OpenDB(t)
	catalog := service.DefaultCatalog()
	ledger := service.NewLedgerService(repository.NewAccountRepository(db), repository.NewPurchaseRepository(db), log)
	provider := &stubProvider{}
	checkout := service.NewCheckoutService(cfg, catalog, provider, log)
	webhook := service.NewWebhookService(cfg, catalog, ledger, log)
	srv := NewServer(cfg, log, checkout, webhook, ledger, db)
	return &fixture{handler: srv.Handler(), db: db, provider: provider}
}

func fullConfig() config.Config {
	return config.Config{
		StripeSecretKey:     "sk_test_123",
		StripeWebhookSecret: webhookSecret,
		PublicBaseURL:       "https://pay.example.com",
		BotUsername:         "TGSongBot",
		AdminUsername:       "admin",
		AdminPassword:       "secret",
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, body
}

func webhookRequest(path string, payload []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	return req
}

func TestCreateCheckout(t *testing.T) {
	f := newFixture(t, fullConfig())

	req := httptest.NewRequest(http.MethodPost, "/checkout/create", strings.NewReader(`{"user_id":1001,"pack":"pack_5","price_id":"price_5"}`))
	rec, body := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if body["session_id"] != "cs_test_1" || body["checkout_url"] != "https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Fatalf("body = %v", body)
	}
}

func TestCreateCheckoutErrors(t *testing.T) {
	cases := []struct {
		name        string
		cfg         config.Config
		body        string
		providerErr error
		wantStatus  int
		wantCalls   int
	}{
		{"malformed json", fullConfig(), `{"user_id":`, nil, http.StatusBadRequest, 0},
		{"unknown pack", fullConfig(), `{"user_id":1001,"pack":"pack_999","price_id":"price_5"}`, nil, http.StatusBadRequest, 0},
		{"missing secret", config.Config{PublicBaseURL: "https://pay.example.com"}, `{"user_id":1001,"pack":"pack_5","price_id":"price_5"}`, nil, http.StatusInternalServerError, 0},
		{"provider rejects", fullConfig(), `{"user_id":1001,"pack":"pack_5","price_id":"price_bad"}`, apperrs.Provider("No such price", nil), http.StatusBadRequest, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, tc.cfg)
			f.provider.err = tc.providerErr

			rec, body := f.do(t, httptest.NewRequest(http.MethodPost, "/checkout/create", strings.NewReader(tc.body)))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if body["ok"] != false || body["error"] == "" {
				t.Fatalf("body = %v", body)
			}
			if f.provider.calls != tc.wantCalls {
				t.Fatalf("provider calls = %d, want %d", f.provider.calls, tc.wantCalls)
			}
		})
	}
}

func TestWebhookCreditsOnceAcrossRoutes(t *testing.T) {
	f := newFixture(t, fullConfig())
	payload := testutil.CheckoutCompletedPayload(t, "sess_abc", "paid", map[string]string{"user_id": "1001", "pack": "pack_5"})
	signature := testutil.SignPayload(payload, webhookSecret)

	rec, body := f.do(t, webhookRequest("/webhook", payload, signature))
	if rec.Code != http.StatusOK || body["credited"] != true || body["session_id"] != "sess_abc" {
		t.Fatalf("first: %d %v", rec.Code, body)
	}

	rec, body = f.do(t, webhookRequest("/stripe/webhook", payload, signature))
	if rec.Code != http.StatusOK || body["credited"] != false || body["ok"] != true {
		t.Fatalf("second: %d %v", rec.Code, body)
	}

	var balance int
	if err := f.db.GetContext(context.Background(), &balance, `SELECT balance FROM users WHERE user_id = 1001`); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if balance != 5 {
		t.Fatalf("balance = %d, want 5", balance)
	}
}

func TestWebhookStatusCodes(t *testing.T) {
	paid := func(t *testing.T) []byte {
		return testutil.CheckoutCompletedPayload(t, "sess_1", "paid", map[string]string{"user_id": "1", "pack": "pack_1"})
	}

	t.Run("missing signature", func(t *testing.T) {
		f := newFixture(t, fullConfig())
		rec, _ := f.do(t, webhookRequest("/webhook", paid(t), ""))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("invalid signature", func(t *testing.T) {
		f := newFixture(t, fullConfig())
		payload := paid(t)
		rec, _ := f.do(t, webhookRequest("/webhook", payload, testutil.SignPayload(payload, "whsec_other")))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("unconfigured secret", func(t *testing.T) {
		cfg := fullConfig()
		cfg.StripeWebhookSecret = ""
		f := newFixture(t, cfg)
		payload := paid(t)
		rec, _ := f.do(t, webhookRequest("/webhook", payload, testutil.SignPayload(payload, webhookSecret)))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("not paid", func(t *testing.T) {
		f := newFixture(t, fullConfig())
		payload := testutil.CheckoutCompletedPayload(t, "sess_xyz", "unpaid", map[string]string{"user_id": "1", "pack": "pack_1"})
		rec, body := f.do(t, webhookRequest("/webhook", payload, testutil.SignPayload(payload, webhookSecret)))
		if rec.Code != http.StatusOK || body["ignored"] != "not_paid" {
			t.Fatalf("%d %v", rec.Code, body)
		}
	})

	t.Run("other event", func(t *testing.T) {
		f := newFixture(t, fullConfig())
		payload := testutil.EventPayload(t, "evt_2", "invoice.paid", map[string]any{"id": "in_1", "object": "invoice"})
		rec, body := f.do(t, webhookRequest("/webhook", payload, testutil.SignPayload(payload, webhookSecret)))
		if rec.Code != http.StatusOK || body["ignored"] != "event_type" || body["event_type"] != "invoice.paid" {
			t.Fatalf("%d %v", rec.Code, body)
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		f := newFixture(t, fullConfig())
		payload := bytes.Repeat([]byte("a"), maxWebhookBody+1)
		rec, _ := f.do(t, webhookRequest("/webhook", payload, "t=1,v1=abc"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRedirectPages(t *testing.T) {
	f := newFixture(t, fullConfig())

	rec, _ := f.do(t, httptest.NewRequest(http.MethodGet, "/checkout/success?session_id=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := rec.Body.String()
	if strings.Contains(page, "<script>alert(1)</script>") {
		t.Fatal("session id rendered unescaped")
	}
	if !strings.Contains(page, "https://t.me/TGSongBot") || !strings.Contains(page, "tg:") {
		t.Fatalf("links missing from page: %s", page)
	}

	rec, _ = f.do(t, httptest.NewRequest(http.MethodGet, "/checkout/cancel", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Payment cancelled") {
		t.Fatalf("cancel page: %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, fullConfig())
	rec, body := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("%d %v", rec.Code, body)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	down := NewServer(fullConfig(), log, nil, nil, nil, failingPinger{})
	rec = httptest.NewRecorder()
	down.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAdminAccount(t *testing.T) {
	f := newFixture(t, fullConfig())
	payload := testutil.CheckoutCompletedPayload(t, "sess_admin", "paid", map[string]string{"user_id": "55", "pack": "pack_30"})
	if rec, _ := f.do(t, webhookRequest("/webhook", payload, testutil.SignPayload(payload, webhookSecret))); rec.Code != http.StatusOK {
		t.Fatalf("seed credit: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/55", nil)
	rec, _ := f.do(t, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/accounts/55", nil)
	req.SetBasicAuth("admin", "secret")
	rec, body := f.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	account := body["account"].(map[string]any)
	if account["balance"] != float64(30) {
		t.Fatalf("account = %v", account)
	}
	if purchases := body["purchases"].([]any); len(purchases) != 1 {
		t.Fatalf("purchases = %v", purchases)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/accounts/56", nil)
	req.SetBasicAuth("admin", "secret")
	if rec, _ := f.do(t, req); rec.Code != http.StatusNotFound {
		t.Fatalf("missing account status = %d", rec.Code)
	}
}

func TestAdminRoutesDisabledWithoutPassword(t *testing.T) {
	cfg := fullConfig()
	cfg.AdminPassword = ""
	f := newFixture(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/admin/accounts/1", nil)
	req.SetBasicAuth("admin", "")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}
