package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richardliu001/wallet-ledger/internal/repo"
	"gorm.io/gorm"
)

var (
	ErrInvalidAmount     = errors.New("amount must be positive with at most two decimal places")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientFunds = repo.ErrInsufficientFunds
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrSelfTransfer      = errors.New("cannot transfer to self")
	ErrUserNotFound      = errors.New("user not found")
	ErrConflict          = errors.New("already exists")
	ErrPersistence       = errors.New("persistence failure")
	// ErrLockTimeout is the transient flavour of ErrPersistence: the unit gave
	// up waiting for a row lock and the caller may retry.
	ErrLockTimeout = fmt.Errorf("%w: lock wait aborted", ErrPersistence)
)

const (
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeRecipientNotFound = "RECIPIENT_NOT_FOUND"
	CodeSelfTransfer      = "SELF_TRANSFER_NOT_ALLOWED"
	CodeUserNotFound      = "USER_NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeLockTimeout       = "LOCK_TIMEOUT"
	CodePersistence       = "PERSISTENCE_FAILURE"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidRequest, CodeInvalidRequest},
	{ErrInsufficientFunds, CodeInsufficientFunds},
	{ErrRecipientNotFound, CodeRecipientNotFound},
	{ErrSelfTransfer, CodeSelfTransfer},
	{ErrUserNotFound, CodeUserNotFound},
	{ErrConflict, CodeConflict},
	{ErrLockTimeout, CodeLockTimeout},
	{ErrPersistence, CodePersistence},
}

// Code returns the stable classification of err. Unclassified errors are
// reported as persistence failures.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodePersistence
}

// Retryable reports whether the caller may repeat the request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrLockTimeout)
}

func classified(err error) bool {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return true
		}
	}
	return false
}

// translateStoreErr maps a storage error onto the taxonomy exactly once.
// Domain errors pass through untouched.
func translateStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case classified(err):
		return err
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case isLockTimeout(err):
		return fmt.Errorf("%w: %w", ErrLockTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
}

func isLockTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// lock_not_available, deadlock_detected
		return pgErr.Code == "55P03" || pgErr.Code == "40P01"
	}
	return false
}
