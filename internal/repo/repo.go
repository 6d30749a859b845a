package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInsufficientFunds is returned when balance is not enough for a debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict means the balance row changed between read and write.
	ErrVersionConflict = errors.New("optimistic lock conflict")
)

// RepositoryInterface restricts Repo methods so the service can be tested
// against wrappers. Methods taking tx must be called with the handle of the
// enclosing atomic unit.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	SetLockTimeout(ctx context.Context, tx *gorm.DB, d time.Duration) error

	GetBalance(ctx context.Context, userID uint64) (*model.Balance, error)
	LockAndRead(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Balance, error)
	Increment(ctx context.Context, tx *gorm.DB, locked *model.Balance, delta decimal.Decimal) error
	Decrement(ctx context.Context, tx *gorm.DB, locked *model.Balance, delta decimal.Decimal) error

	AppendTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	ListTransactions(ctx context.Context, userID uint64, limit int) ([]model.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, userID uint64, key string, typ model.TxType) (*model.Transaction, error)

	OpenAccount(ctx context.Context, u *model.User) (*model.Balance, error)
	FindUserByID(ctx context.Context, tx *gorm.DB, id uint64) (*model.User, error)
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByMobile(ctx context.Context, mobile string) (*model.User, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, b *model.Balance) error
	GetCachedBalance(ctx context.Context, userID uint64) (*model.Balance, error)
	InvalidateBalance(ctx context.Context, userIDs ...uint64) error
}

// Repository implements RepositoryInterface on top of one gorm pool, an
// optional redis client and an optional kafka writer.
type Repository struct {
	db         *gorm.DB
	rdb        *redis.Client
	writer     *kafka.Writer
	log        *zap.SugaredLogger
	balanceTTL time.Duration
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger, balanceTTL: 5 * time.Minute}
}

// WithBalanceTTL sets how long cached balances live.
func (r *Repository) WithBalanceTTL(ttl time.Duration) *Repository {
	if ttl > 0 {
		r.balanceTTL = ttl
	}
	return r
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// SetLockTimeout bounds how long row locks taken later in tx may wait.
// Only PostgreSQL supports it; other dialects rely on the context deadline.
func (r *Repository) SetLockTimeout(ctx context.Context, tx *gorm.DB, d time.Duration) error {
	if d <= 0 || tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.WithContext(ctx).Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds())).Error
}

// GormConfig is the gorm configuration shared by binaries and tests.
func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.Balance{}, &model.Transaction{}, &model.OutboxEvent{})
}
