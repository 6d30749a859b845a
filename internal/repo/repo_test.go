package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/wallet-ledger/internal/logger"
	"github.com/richardliu001/wallet-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) (*Repository, context.Context) {
	cfg := GormConfig()
	cfg.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	// one connection per in-memory database; units serialise on it
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))

	return NewRepository(db, nil, nil, must(logger.NewLogger())), context.Background()
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}

func openAccount(t *testing.T, r *Repository, name, email, mobile string) *model.User {
	u := &model.User{Name: name, Email: email, Mobile: mobile}
	_, err := r.OpenAccount(context.Background(), u)
	require.NoError(t, err)
	return u
}

func TestOpenAccount_CreatesZeroBalance(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Alice", "alice@example.com", "5550001")

	b, err := r.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, b.Amount.IsZero())
	assert.Equal(t, u.ID, b.UserID)

	_, err = r.OpenAccount(ctx, &model.User{Name: "Dup", Email: "alice@example.com", Mobile: "5550002"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestFindUser(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Bob", "bob@example.com", "5550003")

	got, err := r.FindUserByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	got, err = r.FindUserByMobile(ctx, "5550003")
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Name)

	got, err = r.FindUserByID(ctx, r.DB(ctx), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got.Email)

	_, err = r.FindUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLockAndRead_MissingRow(t *testing.T) {
	r, ctx := newTestRepo(t)
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := r.LockAndRead(ctx, tx, 42)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.GetBalance(ctx, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIncrementDecrement(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Carol", "carol@example.com", "5550004")

	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := r.LockAndRead(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		if err := r.Increment(ctx, tx, b, decimal.RequireFromString("100.50")); err != nil {
			return err
		}
		assert.Equal(t, uint64(1), b.Version)
		if err := r.Decrement(ctx, tx, b, decimal.RequireFromString("200")); err != ErrInsufficientFunds {
			return fmt.Errorf("expected insufficient funds, got %v", err)
		}
		return r.Decrement(ctx, tx, b, decimal.RequireFromString("0.50"))
	})
	require.NoError(t, err)

	b, err := r.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, b.Amount.Equal(decimal.NewFromInt(100)), b.Amount.String())
	assert.Equal(t, uint64(2), b.Version)
	assert.False(t, b.LastUpdatedAt.IsZero())
}

func TestWriteBalance_StaleVersion(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Dan", "dan@example.com", "5550005")

	stale, err := r.GetBalance(ctx, u.ID)
	require.NoError(t, err)

	err = r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := r.LockAndRead(ctx, tx, u.ID)
		if err != nil {
			return err
		}
		return r.Increment(ctx, tx, b, decimal.NewFromInt(1))
	})
	require.NoError(t, err)

	err = r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return r.Increment(ctx, tx, stale, decimal.NewFromInt(1))
	})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestListTransactions_OrderAndTieBreak(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Eve", "eve@example.com", "5550006")

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	stamps := []time.Time{base, base.Add(time.Minute), base.Add(time.Minute), base.Add(-time.Minute)}
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		for i, ts := range stamps {
			rec := &model.Transaction{
				UserID: u.ID, Type: model.TxCredit, Amount: decimal.NewFromInt(int64(i + 1)),
				BalanceAfter: decimal.Zero, Status: model.TxCompleted, CreatedAt: ts, LastUpdatedAt: ts,
			}
			if err := r.AppendTransaction(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	txs, err := r.ListTransactions(ctx, u.ID, 0)
	require.NoError(t, err)
	require.Len(t, txs, 4)
	// equal created_at: higher id first
	assert.Equal(t, []string{"3", "2", "1", "4"}, []string{
		txs[0].Amount.String(), txs[1].Amount.String(), txs[2].Amount.String(), txs[3].Amount.String(),
	})
	assert.Greater(t, txs[0].ID, txs[1].ID)

	limited, err := r.ListTransactions(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := r.ListTransactions(ctx, 999, 0)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestFindByIdempotencyKey(t *testing.T) {
	r, ctx := newTestRepo(t)
	u := openAccount(t, r, "Fay", "fay@example.com", "5550007")
	key := "dep-1"

	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return r.AppendTransaction(ctx, tx, &model.Transaction{
			UserID: u.ID, Type: model.TxCredit, Amount: decimal.NewFromInt(5),
			BalanceAfter: decimal.NewFromInt(5), Status: model.TxCompleted, IdempotencyKey: &key,
		})
	})
	require.NoError(t, err)

	got, err := r.FindByIdempotencyKey(ctx, r.DB(ctx), u.ID, key, model.TxCredit)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.BalanceAfter.Equal(decimal.NewFromInt(5)))

	got, err = r.FindByIdempotencyKey(ctx, r.DB(ctx), u.ID, key, model.TxDebit)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.FindByIdempotencyKey(ctx, r.DB(ctx), u.ID, "", model.TxCredit)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestOutbox_PollAndMark(t *testing.T) {
	r, ctx := newTestRepo(t)
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 1; i <= 3; i++ {
			evt := &model.OutboxEvent{Aggregate: "Balance", AggregateID: uint64(i), EventType: model.EventDeposit, Payload: "{}"}
			if err := r.CreateOutboxEvent(ctx, tx, evt); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	evts, err := r.PollOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, evts, 2)
	assert.Less(t, evts[0].ID, evts[1].ID)

	require.NoError(t, r.MarkOutboxProcessed(ctx, evts[0].ID))
	evts, err = r.PollOutbox(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, evts, 2)

	assert.Error(t, r.PublishEvent(ctx, evts[0]), "no writer configured")
}

func TestSetLockTimeout_NoopOnSQLite(t *testing.T) {
	r, ctx := newTestRepo(t)
	assert.NoError(t, r.SetLockTimeout(ctx, r.DB(ctx), time.Second))
}
