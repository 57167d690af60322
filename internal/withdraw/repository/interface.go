package repository

import (
	"context"
	"time"

	"ums_backend/internal/withdraw/domain"

	"github.com/google/uuid"
)

// RequestReader provides read operations for withdraw requests.
type RequestReader interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (domain.WithdrawRequest, error)
	// FindEligiblePage returns up to limit requests in status created strictly
	// before createdBefore, oldest first. A non-nil after skips everything up
	// to and including that position.
	FindEligiblePage(ctx context.Context, status domain.PurgeStatus, createdBefore time.Time, after *domain.PageCursor, limit int) ([]domain.WithdrawRequest, error)
	CountEligible(ctx context.Context, status domain.PurgeStatus, createdBefore time.Time) (int64, error)
}

// RequestWriter provides write operations for withdraw requests.
type RequestWriter interface {
	Create(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawRequest, error)
	// UpdateStatus moves req to newStatus. newTryCount is left untouched when
	// nil. The write only applies while the row still holds req.PurgeStatus;
	// otherwise it fails with Conflict.
	UpdateStatus(ctx context.Context, req domain.WithdrawRequest, newStatus domain.PurgeStatus, newTryCount *int) (domain.WithdrawRequest, error)
}

// RequestStore combines all withdraw request operations.
type RequestStore interface {
	RequestReader
	RequestWriter
}

// HistoryStore is the append-only process history log.
type HistoryStore interface {
	Append(ctx context.Context, entry domain.ProcessHistoryEntry) (domain.ProcessHistoryEntry, error)
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]domain.ProcessHistoryEntry, error)
}
