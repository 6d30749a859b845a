package repo

import (
	"context"
	"errors"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"gorm.io/gorm"
)

// AppendTransaction inserts one immutable ledger line inside tx.
func (r *Repository) AppendTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// ListTransactions returns the user's ledger newest first; ties on
// created_at are broken by the higher id. limit <= 0 returns everything.
func (r *Repository) ListTransactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	txs := make([]model.Transaction, 0)
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&txs).Error; err != nil {
		return nil, err
	}
	return txs, nil
}

// FindByIdempotencyKey returns the ledger line previously written for key,
// or nil when there is none.
func (r *Repository) FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, userID uint64, key string, typ model.TxType) (*model.Transaction, error) {
	if key == "" {
		return nil, nil
	}
	var t model.Transaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ? AND type = ?", userID, key, typ).
		Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
