package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// atomically runs fn as one atomic unit. Every read and write of fn must go
// through tx and the ctx it is handed, which carries the unit deadline. Any
// error rolls the whole unit back and is classified before it is returned.
func (s *WalletService) atomically(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.UnitTimeout)
	defer cancel()

	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.SetLockTimeout(ctx, tx, s.cfg.LockTimeout); err != nil {
			return err
		}
		return fn(ctx, tx)
	})
	if err != nil {
		// drivers report a cancelled statement in their own words
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !classified(err) {
			err = fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
		err = translateStoreErr(err)
		if Code(err) == CodePersistence {
			s.log.Errorw("unit aborted", "op", op, "error", err)
		} else {
			s.log.Warnw("unit aborted", "op", op, "error", err)
		}
	}
	return err
}

// replay returns the ledger line an earlier request with the same key wrote.
// It must run after the owner's row is locked so two racing requests with one
// key cannot both miss it.
func (s *WalletService) replay(ctx context.Context, tx *gorm.DB, userID uint64, key string, typ model.TxType) (*model.Transaction, error) {
	prev, err := s.repo.FindByIdempotencyKey(ctx, tx, userID, key, typ)
	if err != nil || prev == nil {
		return nil, err
	}
	s.log.Infow("idempotent replay", "user_id", userID, "key", key, "transaction_id", prev.ID)
	return prev, nil
}

func (s *WalletService) emit(ctx context.Context, tx *gorm.DB, userID uint64, eventType string, body map[string]interface{}) error {
	payload, _ := json.Marshal(body)
	return s.repo.CreateOutboxEvent(ctx, tx, &model.OutboxEvent{
		Aggregate: "Balance", AggregateID: userID, EventType: eventType, Payload: string(payload),
	})
}

// refreshCache publishes committed balances. The store only accepts a newer
// version than it holds, so a concurrent read-through fill cannot roll it
// back. If the write fails the entries are dropped instead.
func (s *WalletService) refreshCache(ctx context.Context, balances ...*model.Balance) {
	for _, b := range balances {
		if b == nil {
			continue
		}
		if err := s.repo.CacheBalance(ctx, b); err != nil {
			s.log.Warnw("cache refresh failed", "user_id", b.UserID, "error", err)
			if err := s.repo.InvalidateBalance(ctx, b.UserID); err != nil {
				s.log.Warn(err)
			}
		}
	}
}

// maxAmountDigits is the integer part numeric(20,2) can hold.
const maxAmountDigits = 18

// validAmount accepts positive amounts with at most two decimal places that
// fit a balance column. Only the coefficient length and exponent are looked
// at before rounding, so a huge exponent costs nothing to reject.
func validAmount(amt decimal.Decimal) bool {
	if !amt.IsPositive() || !fitsColumn(amt) {
		return false
	}
	exp := amt.Exponent()
	if exp >= -2 {
		return true
	}
	// "1.500" is still two places; anything past a few trailing zeros is not
	if exp < -maxAmountDigits {
		return false
	}
	return amt.Equal(amt.Round(2))
}

func fitsColumn(amt decimal.Decimal) bool {
	return amt.NumDigits()+int(amt.Exponent()) <= maxAmountDigits
}

func keyPtr(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
