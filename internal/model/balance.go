package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the single current-balance row of a user. It is created with the
// user and is only ever mutated under a row lock.
type Balance struct {
	UserID        uint64          `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"amount"`
	Version       uint64          `gorm:"not null;default:0" json:"-"`
	LastUpdatedAt time.Time       `gorm:"not null" json:"last_updated_at"`
}

func (Balance) TableName() string { return "balances" }
