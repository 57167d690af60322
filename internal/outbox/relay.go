package outbox

import (
	"context"
	"time"

	"ums_backend/platform/db"
	"ums_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const defaultRelayInterval = 2 * time.Second

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type relayStore interface {
	ClaimUnpublished(ctx context.Context, limit int) ([]Record, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
	MarkFailedAttempt(ctx context.Context, ids []uuid.UUID, lastError string) error
}

// Relay polls the outbox and publishes each event to the Kafka topic named
// by its event type, keyed by aggregate id. Deployments running CDC leave it
// disabled.
type Relay struct {
	repo     relayStore
	tx       db.Transactor
	writer   MessageWriter
	log      *logger.Logger
	interval time.Duration
	batch    int
}

// NewRelay creates an outbox relay.
func NewRelay(repo relayStore, tx db.Transactor, writer MessageWriter, log *logger.Logger, interval time.Duration, batch int) *Relay {
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	if batch < 1 {
		batch = defaultClaimLimit
	}
	return &Relay{repo: repo, tx: tx, writer: writer, log: log, interval: interval, batch: batch}
}

// Run relays until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	if r == nil || r.writer == nil {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sent, err := r.RelayBatch(ctx)
		if err != nil {
			r.log.Warn("outbox relay batch failed", "error", err)
			continue
		}
		if sent > 0 {
			r.log.Debug("outbox relay published events", "count", sent)
		}
	}
}

// RelayBatch publishes one batch and returns how many events were delivered.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	var sent int
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		records, err := r.repo.ClaimUnpublished(ctx, r.batch)
		if err != nil {
			return err
		}

		var published, failed []uuid.UUID
		var lastErr error
		for _, rec := range records {
			msg := kafka.Message{
				Topic: rec.EventType,
				Key:   []byte(rec.AggregateID),
				Value: rec.Payload,
				Headers: []kafka.Header{
					{Key: "eventType", Value: []byte(rec.EventType)},
					{Key: "eventId", Value: []byte(rec.ID.String())},
				},
				Time: rec.CreatedAt,
			}
			if err := r.writer.WriteMessages(ctx, msg); err != nil {
				failed = append(failed, rec.ID)
				lastErr = err
				continue
			}
			published = append(published, rec.ID)
		}

		if err := r.repo.MarkPublished(ctx, published); err != nil {
			return err
		}
		if lastErr != nil {
			r.log.Warn("outbox publish failed", "failed", len(failed), "error", lastErr)
			if err := r.repo.MarkFailedAttempt(ctx, failed, lastErr.Error()); err != nil {
				return err
			}
		}
		sent = len(published)
		return nil
	})
	return sent, err
}
