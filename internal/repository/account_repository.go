package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/digkill/TGSongBot/internal/database"
	"github.com/digkill/TGSongBot/internal/models"
)

type AccountRepository struct {
	db *database.DB
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) DB() *database.DB {
	return r.db
}

// Ensure creates the account row if it does not exist yet. Safe to repeat.
func (r *AccountRepository) Ensure(ctx context.Context, userID int64) error {
	query := r.db.Rebind(r.db.Dialect.InsertAccountIgnoreConflict())
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("ensure account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByUserID(ctx context.Context, userID int64) (*models.Account, error) {
	return r.find(ctx, r.db, userID)
}

// FindTx reads the account through q, so a transaction sees its own writes.
func (r *AccountRepository) FindTx(ctx context.Context, q sqlx.QueryerContext, userID int64) (*models.Account, error) {
	return r.find(ctx, q, userID)
}

func (r *AccountRepository) find(ctx context.Context, q sqlx.QueryerContext, userID int64) (*models.Account, error) {
	query := r.db.Rebind(`
SELECT user_id, lang, balance, demo_used, created_at
FROM users WHERE user_id = ?`)
	var account models.Account
	if err := sqlx.GetContext(ctx, q, &account, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &account, nil
}

// AddBalance increments the balance through q. Only the ledger calls this, inside the
// transaction that inserted the matching purchase.
func (r *AccountRepository) AddBalance(ctx context.Context, q sqlx.ExecerContext, userID int64, delta int) error {
	query := r.db.Rebind(`UPDATE users SET balance = balance + ? WHERE user_id = ?`)
	res, err := q.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("add balance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("balance rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("add balance: account %d not found", userID)
	}
	return nil
}
