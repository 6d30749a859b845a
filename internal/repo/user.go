package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OpenAccount creates the user and its zero balance row together.
func (r *Repository) OpenAccount(ctx context.Context, u *model.User) (*model.Balance, error) {
	var bal *model.Balance
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return err
		}
		bal = &model.Balance{UserID: u.ID, Amount: decimal.Zero, LastUpdatedAt: u.CreatedAt}
		return tx.Create(bal).Error
	})
	if err != nil {
		return nil, err
	}
	return bal, nil
}

// FindUserByID reads through tx so callers inside a unit stay on its handle.
func (r *Repository) FindUserByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.User, error) {
	return findUser(tx.WithContext(ctx), "id = ?", id)
}

func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return findUser(r.db.WithContext(ctx), "email = ?", email)
}

func (r *Repository) FindUserByMobile(ctx context.Context, mobile string) (*model.User, error) {
	return findUser(r.db.WithContext(ctx), "mobile = ?", mobile)
}

func findUser(db *gorm.DB, query string, arg interface{}) (*model.User, error) {
	var u model.User
	err := db.Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
