package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxType string

const (
	TxCredit TxType = "CREDIT"
	TxDebit  TxType = "DEBIT"
)

type TxStatus string

// Only completed operations are written; an aborted unit leaves no record.
const TxCompleted TxStatus = "COMPLETED"

type Transaction struct {
	ID              uint64          `gorm:"primaryKey" json:"transaction_id"`
	UserID          uint64          `gorm:"not null;index:idx_tx_user_created,priority:1;uniqueIndex:idx_tx_idem,priority:1" json:"user_id"`
	Type            TxType          `gorm:"size:16;not null;uniqueIndex:idx_tx_idem,priority:3" json:"type"`
	Amount          decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	BalanceAfter    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_after"`
	Description     string          `gorm:"size:255" json:"description"`
	Status          TxStatus        `gorm:"size:16;not null" json:"status"`
	CounterpartyID  *uint64         `json:"counterparty_id"`
	TransferGroupID *string         `gorm:"size:36;index" json:"transfer_group_id,omitempty"`
	MerchantID      *string         `gorm:"size:64" json:"merchant_id,omitempty"`
	IdempotencyKey  *string         `gorm:"size:64;uniqueIndex:idx_tx_idem,priority:2" json:"-"`
	CreatedAt       time.Time       `gorm:"index:idx_tx_user_created,priority:2" json:"created_at"`
	LastUpdatedAt   time.Time       `json:"last_updated_at"`
}

func (Transaction) TableName() string { return "transactions" }

// Signed returns the amount as it affects the owner's balance.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == TxDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}
