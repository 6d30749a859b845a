package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/richardliu001/wallet-ledger/internal/config"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"github.com/richardliu001/wallet-ledger/internal/resolver"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecipientResolver turns a user-typed identifier into a ledger user.
type RecipientResolver interface {
	Resolve(ctx context.Context, raw string) (resolver.Recipient, error)
}

// WalletService is the transfer engine: it owns every balance mutation and
// the ledger lines that record it.
type WalletService struct {
	repo     repo.RepositoryInterface
	resolver RecipientResolver
	log      *zap.SugaredLogger
	cfg      config.LedgerConfig
}

// NewWalletService returns WalletService. Zero timeouts in cfg fall back to
// the config defaults.
func NewWalletService(r repo.RepositoryInterface, res RecipientResolver, logger *zap.SugaredLogger, cfg config.LedgerConfig) *WalletService {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = defaultUnitTimeout
	}
	return &WalletService{repo: r, resolver: res, log: logger, cfg: cfg}
}

// Deposit credits amt to the user and returns the new balance.
func (s *WalletService) Deposit(ctx context.Context, userID uint64, amt decimal.Decimal, key string) (decimal.Decimal, error) {
	if !validAmount(amt) {
		return decimal.Zero, ErrInvalidAmount
	}
	if userID == 0 {
		return decimal.Zero, fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	}

	var (
		finalBal decimal.Decimal
		locked   *model.Balance
	)
	err := s.atomically(ctx, "deposit", func(ctx context.Context, tx *gorm.DB) error {
		b, err := s.repo.LockAndRead(ctx, tx, userID)
		if err != nil {
			return err
		}
		locked = b
		prev, err := s.replay(ctx, tx, userID, key, model.TxCredit)
		if err != nil {
			return err
		}
		if prev != nil {
			finalBal = prev.BalanceAfter
			return nil
		}

		if !fitsColumn(b.Amount.Add(amt)) {
			return fmt.Errorf("%w: balance limit exceeded", ErrInvalidAmount)
		}
		if err := s.repo.Increment(ctx, tx, b, amt); err != nil {
			return err
		}
		t := &model.Transaction{
			UserID: userID, Type: model.TxCredit, Amount: amt, BalanceAfter: b.Amount,
			Description: "Wallet deposit", Status: model.TxCompleted,
			IdempotencyKey: keyPtr(key), LastUpdatedAt: b.LastUpdatedAt,
		}
		if err := s.repo.AppendTransaction(ctx, tx, t); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, userID, model.EventDeposit, map[string]interface{}{
			"user_id": userID, "amount": amt, "balance": b.Amount, "transaction_id": t.ID,
		}); err != nil {
			return err
		}
		finalBal = b.Amount
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.refreshCache(ctx, locked)
	s.log.Infow("deposit committed", "user_id", userID, "amount", amt.String(), "balance", finalBal.String())
	return finalBal, nil
}

// PayBill debits amt for a merchant bill. The merchant is outside the ledger,
// so nothing is credited; merchantID is kept on the debit line.
func (s *WalletService) PayBill(ctx context.Context, userID uint64, merchantID string, amt decimal.Decimal, description, key string) (decimal.Decimal, error) {
	if !validAmount(amt) {
		return decimal.Zero, ErrInvalidAmount
	}
	merchantID = strings.TrimSpace(merchantID)
	if userID == 0 || merchantID == "" {
		return decimal.Zero, fmt.Errorf("%w: user_id and merchant_id are required", ErrInvalidRequest)
	}
	if description = strings.TrimSpace(description); description == "" {
		description = "Bill payment to " + merchantID
	}

	var (
		finalBal decimal.Decimal
		locked   *model.Balance
	)
	err := s.atomically(ctx, "bill_payment", func(ctx context.Context, tx *gorm.DB) error {
		b, err := s.repo.LockAndRead(ctx, tx, userID)
		if err != nil {
			return err
		}
		locked = b
		prev, err := s.replay(ctx, tx, userID, key, model.TxDebit)
		if err != nil {
			return err
		}
		if prev != nil {
			finalBal = prev.BalanceAfter
			return nil
		}

		if b.Amount.LessThan(amt) {
			return ErrInsufficientFunds
		}
		if err := s.repo.Decrement(ctx, tx, b, amt); err != nil {
			return err
		}
		t := &model.Transaction{
			UserID: userID, Type: model.TxDebit, Amount: amt, BalanceAfter: b.Amount,
			Description: description, Status: model.TxCompleted, MerchantID: &merchantID,
			IdempotencyKey: keyPtr(key), LastUpdatedAt: b.LastUpdatedAt,
		}
		if err := s.repo.AppendTransaction(ctx, tx, t); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, userID, model.EventBillPayment, map[string]interface{}{
			"user_id": userID, "merchant_id": merchantID, "amount": amt, "balance": b.Amount, "transaction_id": t.ID,
		}); err != nil {
			return err
		}
		finalBal = b.Amount
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.refreshCache(ctx, locked)
	s.log.Infow("bill payment committed", "user_id", userID, "merchant_id", merchantID, "amount", amt.String(), "balance", finalBal.String())
	return finalBal, nil
}

// Transfer moves amt from the sender to whoever recipient identifies and
// returns the sender's new balance.
func (s *WalletService) Transfer(ctx context.Context, senderID uint64, recipient string, amt decimal.Decimal, key string) (decimal.Decimal, error) {
	if !validAmount(amt) {
		return decimal.Zero, ErrInvalidAmount
	}
	if senderID == 0 || strings.TrimSpace(recipient) == "" {
		return decimal.Zero, fmt.Errorf("%w: sender_id and recipient_identifier are required", ErrInvalidRequest)
	}

	// resolved on the pool, before any lock is taken
	rcpt, err := s.resolver.Resolve(ctx, recipient)
	switch {
	case errors.Is(err, resolver.ErrNotFound):
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRecipientNotFound, err)
	case errors.Is(err, resolver.ErrInvalidIdentifier):
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	case err != nil:
		return decimal.Zero, translateStoreErr(err)
	}
	if rcpt.ID == senderID {
		return decimal.Zero, ErrSelfTransfer
	}
	recipientID := rcpt.ID
	groupID := uuid.NewString()

	var (
		fromBal decimal.Decimal
		locked  []*model.Balance
	)
	err = s.atomically(ctx, "transfer", func(ctx context.Context, tx *gorm.DB) error {
		// lock in ascending id order so opposite transfers cannot deadlock
		firstID, secondID := senderID, recipientID
		if secondID < firstID {
			firstID, secondID = secondID, firstID
		}
		w1, err := s.repo.LockAndRead(ctx, tx, firstID)
		if err != nil {
			return err
		}
		w2, err := s.repo.LockAndRead(ctx, tx, secondID)
		if err != nil {
			return err
		}
		locked = []*model.Balance{w1, w2}
		wFrom, wTo := w1, w2
		if firstID != senderID {
			wFrom, wTo = w2, w1
		}

		prev, err := s.replay(ctx, tx, senderID, key, model.TxDebit)
		if err != nil {
			return err
		}
		if prev != nil {
			fromBal = prev.BalanceAfter
			return nil
		}

		if wFrom.Amount.LessThan(amt) {
			return ErrInsufficientFunds
		}
		if !fitsColumn(wTo.Amount.Add(amt)) {
			return fmt.Errorf("%w: recipient balance limit exceeded", ErrInvalidAmount)
		}
		sender, err := s.repo.FindUserByID(ctx, tx, senderID)
		if err != nil {
			return err
		}
		if err := s.repo.Decrement(ctx, tx, wFrom, amt); err != nil {
			return err
		}
		if err := s.repo.Increment(ctx, tx, wTo, amt); err != nil {
			return err
		}

		txOut := &model.Transaction{
			UserID: senderID, Type: model.TxDebit, Amount: amt, BalanceAfter: wFrom.Amount,
			Description: "Transfer to " + rcpt.Name, Status: model.TxCompleted,
			CounterpartyID: &recipientID, TransferGroupID: &groupID,
			IdempotencyKey: keyPtr(key), LastUpdatedAt: wFrom.LastUpdatedAt,
		}
		txIn := &model.Transaction{
			UserID: recipientID, Type: model.TxCredit, Amount: amt, BalanceAfter: wTo.Amount,
			Description: "Transfer from " + sender.Name, Status: model.TxCompleted,
			CounterpartyID: &senderID, TransferGroupID: &groupID,
			LastUpdatedAt: wTo.LastUpdatedAt,
		}
		if err := s.repo.AppendTransaction(ctx, tx, txOut); err != nil {
			return err
		}
		if err := s.repo.AppendTransaction(ctx, tx, txIn); err != nil {
			return err
		}
		if err := s.emit(ctx, tx, senderID, model.EventTransfer, map[string]interface{}{
			"from": senderID, "to": recipientID, "amount": amt, "transfer_group_id": groupID,
		}); err != nil {
			return err
		}
		fromBal = wFrom.Amount
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.refreshCache(ctx, locked...)
	s.log.Infow("transfer committed", "from", senderID, "to", recipientID, "amount", amt.String(), "transfer_group_id", groupID)
	return fromBal, nil
}
