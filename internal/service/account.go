package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/resolver"
	"github.com/shopspring/decimal"
)

const (
	defaultLockTimeout = 3 * time.Second
	defaultUnitTimeout = 10 * time.Second
)

// Profile is a user together with a point-in-time balance read.
type Profile struct {
	User               model.User      `json:"user"`
	CurrentBalance     decimal.Decimal `json:"currentBalance"`
	BalanceLastUpdated time.Time       `json:"balanceLastUpdated"`
}

// OpenAccount registers a user with a zero balance. Email and mobile are
// stored in the normalised form the resolver looks them up by.
func (s *WalletService) OpenAccount(ctx context.Context, name, email, mobile string) (*model.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRequest)
	}
	e, err := resolver.Parse(email)
	if _, ok := e.(resolver.EmailIdentifier); err != nil || !ok {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidRequest, email)
	}
	m, err := resolver.Parse(mobile)
	if _, ok := m.(resolver.PhoneIdentifier); err != nil || !ok {
		return nil, fmt.Errorf("%w: invalid mobile %q", ErrInvalidRequest, mobile)
	}

	u := &model.User{Name: name, Email: e.String(), Mobile: m.String()}
	if _, err := s.repo.OpenAccount(ctx, u); err != nil {
		return nil, translateStoreErr(err)
	}
	s.log.Infow("account opened", "user_id", u.ID)
	return u, nil
}

// GetBalance is an unlocked read, served from cache when possible.
func (s *WalletService) GetBalance(ctx context.Context, userID uint64) (*model.Balance, error) {
	if b, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return b, nil
	}
	b, err := s.repo.GetBalance(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if err := s.repo.CacheBalance(ctx, b); err != nil {
		s.log.Warn(err)
	}
	return b, nil
}

// GetProfile looks a user up by email and attaches the current balance.
func (s *WalletService) GetProfile(ctx context.Context, email string) (*Profile, error) {
	e, err := resolver.Parse(email)
	if _, ok := e.(resolver.EmailIdentifier); err != nil || !ok {
		return nil, fmt.Errorf("%w: invalid email_id %q", ErrInvalidRequest, email)
	}
	u, err := s.repo.FindUserByEmail(ctx, e.String())
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrUserNotFound, err)
	}
	if err != nil {
		return nil, translateStoreErr(err)
	}
	b, err := s.GetBalance(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	return &Profile{User: *u, CurrentBalance: b.Amount, BalanceLastUpdated: b.LastUpdatedAt}, nil
}

// ListTransactions returns the user's ledger newest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}
	txs, err := s.repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return txs, nil
}

// Repo exposes underlying repository (unit tests helper).
func (s *WalletService) Repo() repo.RepositoryInterface {
	return s.repo
}
