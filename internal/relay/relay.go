// Package relay drains the transactional outbox into Kafka.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/wallet-ledger/internal/model"
	"go.uber.org/zap"
)

type Store interface {
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
}

type Relay struct {
	store Store
	pub   Publisher
	log   *zap.SugaredLogger
	batch int
}

func New(store Store, pub Publisher, log *zap.SugaredLogger, batch int) *Relay {
	if batch <= 0 {
		batch = 100
	}
	return &Relay{store: store, pub: pub, log: log, batch: batch}
}

// RunOnce publishes one batch in id order and returns how many events were
// marked processed. It stops at the first publish failure so later events
// never overtake an earlier one; delivery is at-least-once.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	events, err := r.store.PollOutbox(ctx, r.batch)
	if err != nil {
		return 0, fmt.Errorf("poll outbox: %w", err)
	}
	sent := 0
	for _, evt := range events {
		if err := r.pub.PublishEvent(ctx, evt); err != nil {
			return sent, fmt.Errorf("publish id=%d: %w", evt.ID, err)
		}
		if err := r.store.MarkOutboxProcessed(ctx, evt.ID); err != nil {
			return sent, fmt.Errorf("mark processed id=%d: %w", evt.ID, err)
		}
		sent++
	}
	return sent, nil
}

// Run polls every interval until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.log.Info("outbox relay started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				r.log.Errorf("relay: %v", err)
			}
			if n > 0 {
				r.log.Infof("relayed %d events", n)
			}
		}
	}
}
