// Package outbox stages integration events in Postgres inside the caller's
// transaction. A change-data-capture pipeline or the built-in Relay ships
// them to Kafka later.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ums_backend/platform/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const (
	outboxTable = "outbox_events"

	defaultClaimLimit = 50
	// MaxAttempts stops the relay from retrying a poisoned event forever.
	MaxAttempts = 10
)

// Record is one staged event.
type Record struct {
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	Attempts    int
	CreatedAt   time.Time
}

// Writer appends events. It is what domain services depend on.
type Writer interface {
	Append(ctx context.Context, eventType, aggregateID string, payload any) (uuid.UUID, error)
}

// Repository is the Postgres outbox.
type Repository struct {
	pool db.Executor
	sb   sq.StatementBuilderType
}

// New creates an outbox repository.
func New(pool db.Executor) *Repository {
	return &Repository{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// Append serializes payload as JSON and stages it. It must be called with
// the ctx of the transaction that performs the domain change.
func (r *Repository) Append(ctx context.Context, eventType, aggregateID string, payload any) (uuid.UUID, error) {
	if eventType == "" {
		return uuid.Nil, errors.New("event type is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal outbox payload: %w", err)
	}

	id := uuid.New()
	query, args, err := r.sb.
		Insert(outboxTable).
		Columns("id", "aggregate_id", "event_type", "payload").
		Values(id, aggregateID, eventType, body).
		ToSql()
	if err != nil {
		return uuid.Nil, fmt.Errorf("build outbox insert: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return uuid.Nil, fmt.Errorf("insert outbox event: %w", err)
	}
	return id, nil
}

// ClaimUnpublished locks up to limit unpublished events, oldest first. Call
// it inside a transaction so the locks hold until the batch is marked.
func (r *Repository) ClaimUnpublished(ctx context.Context, limit int) ([]Record, error) {
	if limit < 1 {
		limit = defaultClaimLimit
	}

	query, args, err := r.sb.
		Select("id", "aggregate_id", "event_type", "payload", "attempts", "created_at").
		From(outboxTable).
		Where(sq.And{
			sq.Eq{"published_at": nil},
			sq.Lt{"attempts": MaxAttempts},
		}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outbox claim: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim outbox events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.AggregateID, &rec.EventType, &rec.Payload, &rec.Attempts, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkPublished stamps the given events as delivered.
func (r *Repository) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.
		Update(outboxTable).
		Set("published_at", sq.Expr("now()")).
		Set("last_error", nil).
		Where(sq.Eq{"id": uuid.UUIDs(ids).Strings()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark published: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// MarkFailedAttempt bumps the attempt counter and records the last error.
func (r *Repository) MarkFailedAttempt(ctx context.Context, ids []uuid.UUID, lastError string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := r.sb.
		Update(outboxTable).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", lastError).
		Where(sq.Eq{"id": uuid.UUIDs(ids).Strings()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark failed: %w", err)
	}

	if _, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox attempt failed: %w", err)
	}
	return nil
}

var _ Writer = (*Repository)(nil)
