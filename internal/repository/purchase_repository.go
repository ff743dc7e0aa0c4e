package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/digkill/TGSongBot/internal/database"
	"github.com/digkill/TGSongBot/internal/models"
)

// ErrDuplicatePurchase means a purchase with the same session id is already stored.
var ErrDuplicatePurchase = errors.New("purchase already recorded")

type PurchaseRepository struct {
	db *database.DB
}

func NewPurchaseRepository(db *database.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// Insert stores the purchase through q. The primary key on session_id rejects a second
// insert for the same session; that rejection is returned as ErrDuplicatePurchase.
func (r *PurchaseRepository) Insert(ctx context.Context, q sqlx.ExecerContext, purchase *models.Purchase) error {
	query := r.db.Rebind(`
INSERT INTO purchases (session_id, user_id, pack, credits)
VALUES (?, ?, ?, ?)`)
	if _, err := q.ExecContext(ctx, query, purchase.SessionID, purchase.UserID, purchase.Pack, purchase.Credits); err != nil {
		if r.db.Dialect.IsUniqueViolation(err) {
			return ErrDuplicatePurchase
		}
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func (r *PurchaseRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	query := r.db.Rebind(`
SELECT session_id, user_id, pack, credits, created_at
FROM purchases WHERE session_id = ?`)
	var purchases []models.Purchase
	if err := r.db.SelectContext(ctx, &purchases, query, sessionID); err != nil {
		return nil, fmt.Errorf("find purchase: %w", err)
	}
	if len(purchases) == 0 {
		return nil, nil
	}
	return &purchases[0], nil
}

func (r *PurchaseRepository) ListByUser(ctx context.Context, userID int64) ([]models.Purchase, error) {
	query := r.db.Rebind(`
SELECT session_id, user_id, pack, credits, created_at
FROM purchases WHERE user_id = ?
ORDER BY created_at DESC, session_id ASC`)
	purchases := []models.Purchase{}
	if err := r.db.SelectContext(ctx, &purchases, query, userID); err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return purchases, nil
}
