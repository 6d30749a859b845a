package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetBalance is an unlocked point-in-time read.
func (r *Repository) GetBalance(ctx context.Context, userID uint64) (*model.Balance, error) {
	var b model.Balance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("balance of user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// LockAndRead locks the balance row for the rest of tx and returns it.
func (r *Repository) LockAndRead(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Balance, error) {
	var b model.Balance
	res := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).Find(&b)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("balance of user %d: %w", userID, ErrNotFound)
	}
	return &b, nil
}

// Increment adds delta to a row previously returned by LockAndRead in the
// same tx. locked is updated in place.
func (r *Repository) Increment(ctx context.Context, tx *gorm.DB, locked *model.Balance, delta decimal.Decimal) error {
	return r.writeBalance(ctx, tx, locked, locked.Amount.Add(delta))
}

// Decrement subtracts delta from a locked row. The caller checks funds first;
// the check here only keeps a buggy caller from committing a negative balance.
func (r *Repository) Decrement(ctx context.Context, tx *gorm.DB, locked *model.Balance, delta decimal.Decimal) error {
	if locked.Amount.LessThan(delta) {
		return ErrInsufficientFunds
	}
	return r.writeBalance(ctx, tx, locked, locked.Amount.Sub(delta))
}

func (r *Repository) writeBalance(ctx context.Context, tx *gorm.DB, locked *model.Balance, amount decimal.Decimal) error {
	now := time.Now().UTC()
	res := tx.WithContext(ctx).
		Model(&model.Balance{}).
		Where("user_id = ? AND version = ?", locked.UserID, locked.Version).
		Updates(map[string]interface{}{
			"amount":          amount,
			"version":         locked.Version + 1,
			"last_updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	locked.Amount = amount
	locked.Version++
	locked.LastUpdatedAt = now
	return nil
}
