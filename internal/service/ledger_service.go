package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/digkill/TGSongBot/internal/models"
	"github.com/digkill/TGSongBot/internal/repository"
)

// CreditOutcome reports what a credit attempt did. Balance and Lang are only filled
// when Credited is true.
type CreditOutcome struct {
	Credited bool
	Balance  int
	Lang     string
}

// LedgerService owns every balance mutation.
type LedgerService struct {
	accounts  *repository.AccountRepository
	purchases *repository.PurchaseRepository
	log       *slog.Logger
}

func NewLedgerService(accounts *repository.AccountRepository, purchases *repository.PurchaseRepository, log *slog.Logger) *LedgerService {
	return &LedgerService{accounts: accounts, purchases: purchases, log: log}
}

// Credit applies purchase at most once per session id. The account row is upserted on
// its own; the purchase insert and the balance increment share one transaction, and the
// purchase primary key decides which of several concurrent deliveries wins.
func (s *LedgerService) Credit(ctx context.Context, purchase models.Purchase) (*CreditOutcome, error) {
	if purchase.SessionID == "" || purchase.UserID <= 0 || purchase.Credits <= 0 {
		return nil, fmt.Errorf("invalid purchase %+v", purchase)
	}

	if err := s.accounts.Ensure(ctx, purchase.UserID); err != nil {
		return nil, err
	}

	tx, err := s.accounts.DB().BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.purchases.Insert(ctx, tx, &purchase); err != nil {
		if errors.Is(err, repository.ErrDuplicatePurchase) {
			s.log.Info("purchase already credited", "session_id", purchase.SessionID, "user_id", purchase.UserID)
			return &CreditOutcome{Credited: false}, nil
		}
		return nil, err
	}

	if err := s.accounts.AddBalance(ctx, tx, purchase.UserID, purchase.Credits); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindTx(ctx, tx, purchase.UserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %d vanished during credit", purchase.UserID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit tx: %w", err)
	}

	s.log.Info("purchase credited",
		"session_id", purchase.SessionID,
		"user_id", purchase.UserID,
		"pack", purchase.Pack,
		"credits", purchase.Credits,
		"balance", account.Balance,
	)
	return &CreditOutcome{Credited: true, Balance: account.Balance, Lang: account.Lang}, nil
}

// Account returns the account and its purchases, or nil when the user never paid.
func (s *LedgerService) Account(ctx context.Context, userID int64) (*models.Account, []models.Purchase, error) {
	account, err := s.accounts.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("find account: %w", err)
	}
	if account == nil {
		return nil, nil, nil
	}
	purchases, err := s.purchases.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return account, purchases, nil
}
