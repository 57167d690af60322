// Package domain holds the withdrawal and purge records shared by the
// withdraw service, the purge runner and their stores.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PurgeStatus is stored as a plain text tag so old rows stay readable when the
// set of states grows.
type PurgeStatus string

const (
	PurgeStatusPending   PurgeStatus = "PENDING"
	PurgeStatusRetrying  PurgeStatus = "RETRYING"
	PurgeStatusCompleted PurgeStatus = "COMPLETED"
	PurgeStatusFailed    PurgeStatus = "FAILED"
)

// Purgeable reports whether the purge runner may pick up a request in s.
func (s PurgeStatus) Purgeable() bool {
	return s == PurgeStatusPending || s == PurgeStatusRetrying
}

// Terminal reports whether s is a final state.
func (s PurgeStatus) Terminal() bool {
	return s == PurgeStatusCompleted || s == PurgeStatusFailed
}

// ParsePurgeStatus validates a stored or requested status tag.
func ParsePurgeStatus(raw string) (PurgeStatus, error) {
	switch s := PurgeStatus(raw); s {
	case PurgeStatusPending, PurgeStatusRetrying, PurgeStatusCompleted, PurgeStatusFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown purge status %q", raw)
	}
}

// WithdrawRequest tracks one withdrawn user until the identity provider
// account is gone. Rows are never deleted.
type WithdrawRequest struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	Email         string
	PurgeStatus   PurgeStatus
	PurgeTryCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PageCursor is a keyset position in (created_at, id) order.
type PageCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorOf returns the position of req.
func CursorOf(req WithdrawRequest) *PageCursor {
	return &PageCursor{CreatedAt: req.CreatedAt, ID: req.ID}
}

// Process names a step of the withdrawal recorded in the history log.
type Process string

const (
	ProcessApplicationUserDelete Process = "APPLICATION_USER_DELETE"
	ProcessKeycloakUserDelete    Process = "KEYCLOAK_USER_DELETE"
)

// ProcessHistoryEntry is an append-only audit record.
type ProcessHistoryEntry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	RequestID   uuid.UUID
	Process     Process
	IsPassed    bool
	ProcessedAt time.Time
}

// BatchResult accumulates the outcome of one purge pass.
type BatchResult struct {
	Target  PurgeStatus `json:"target"`
	Total   int64       `json:"total"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
}

// Processed is the number of items attempted so far.
func (r BatchResult) Processed() int {
	return r.Success + r.Failed
}

func (r BatchResult) String() string {
	return fmt.Sprintf("%s: %d/%d succeeded, %d failed", r.Target, r.Success, r.Total, r.Failed)
}
