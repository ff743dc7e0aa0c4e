package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/digkill/TGSongBot/internal/database"
	"github.com/digkill/TGSongBot/internal/payments"
	"github.com/digkill/TGSongBot/internal/repository"
	"github.com/digkill/TGSongBot/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) (*LedgerService, *database.DB) {
	t.Helper()
	db := testutil.OpenDB(t)
	ledger := NewLedgerService(repository.NewAccountRepository(db), repository.NewPurchaseRepository(db), quietLogger())
	return ledger, db
}

func balanceOf(t *testing.T, db *database.DB, userID int64) int {
	t.Helper()
	var balance int
	if err := db.GetContext(context.Background(), &balance, db.Rebind(`SELECT balance FROM users WHERE user_id = ?`), userID); err != nil {
		t.Fatalf("read balance: %v", err)
	}
	return balance
}

func countRows(t *testing.T, db *database.DB, table string) int {
	t.Helper()
	var n int
	if err := db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

type fakeProvider struct {
	mu     sync.Mutex
	calls  []payments.CheckoutParams
	result *payments.CheckoutSession
	err    error
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, p payments.CheckoutParams) (*payments.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type notification struct {
	userID  int64
	lang    string
	credits int
	balance int
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
	err  error
}

func (f *fakeNotifier) NotifyCredited(_ context.Context, userID int64, lang string, credits, balance int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notification{userID: userID, lang: lang, credits: credits, balance: balance})
	return f.err
}

type fakeArchiver struct {
	mu       sync.Mutex
	sessions []string
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, sessionID string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sessionID)
	return f.err
}
