package repository

import (
	"context"
	"fmt"
	"time"

	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

const historiesTable = "withdraw_process_histories"

// Histories is the Postgres process history log.
type Histories struct {
	pool db.Executor
	sb   sq.StatementBuilderType
	now  func() time.Time
}

// NewHistories creates a process history store.
func NewHistories(pool db.Executor) *Histories {
	return &Histories{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
	}
}

func (h *Histories) Append(ctx context.Context, entry domain.ProcessHistoryEntry) (domain.ProcessHistoryEntry, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = h.now().UTC()
	}

	query, args, err := h.sb.
		Insert(historiesTable).
		Columns("id", "user_id", "request_id", "process", "is_passed", "processed_at").
		Values(entry.ID, entry.UserID, entry.RequestID, string(entry.Process), entry.IsPassed, entry.ProcessedAt).
		ToSql()
	if err != nil {
		return domain.ProcessHistoryEntry{}, fmt.Errorf("build insert history query: %w", err)
	}

	if _, err := db.Conn(ctx, h.pool).Exec(ctx, query, args...); err != nil {
		return domain.ProcessHistoryEntry{}, fmt.Errorf("insert process history: %w", err)
	}
	return entry, nil
}

func (h *Histories) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.ProcessHistoryEntry, error) {
	query, args, err := h.sb.
		Select("id", "user_id", "request_id", "process", "is_passed", "processed_at").
		From(historiesTable).
		Where(sq.Eq{"request_id": requestID.String()}).
		OrderBy("processed_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list history query: %w", err)
	}

	rows, err := db.Conn(ctx, h.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query process history: %w", err)
	}
	defer rows.Close()

	var entries []domain.ProcessHistoryEntry
	for rows.Next() {
		var e domain.ProcessHistoryEntry
		var process string
		if err := rows.Scan(&e.ID, &e.UserID, &e.RequestID, &process, &e.IsPassed, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan process history: %w", err)
		}
		e.Process = domain.Process(process)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ HistoryStore = (*Histories)(nil)
