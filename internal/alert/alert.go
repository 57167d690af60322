// Package alert delivers operator alerts about the purge job.
package alert

import (
	"context"
	"errors"
	"fmt"

	"ums_backend/platform/logger"
)

const (
	TitlePurgeStarted   = "[INFO] UMS Keycloak Withdraw started"
	TitlePurgeCompleted = "[INFO] UMS Keycloak Withdraw completed"
	TitlePurgeFailed    = "[ERROR] UMS Keycloak Withdraw failed"
	TitlePurgeCritical  = "[Critical] User Purge Failed Alert"
)

// CriticalPurgeMessage is the body of the alert sent when a request runs out
// of retries.
func CriticalPurgeMessage(userID string) string {
	return fmt.Sprintf("User with UID %s has exceeded the maximum retry attempts for user data purge.", userID)
}

// Sink delivers one alert. Callers treat failures as non-fatal.
type Sink interface {
	Notify(ctx context.Context, title, message string) error
}

// Noop drops alerts.
type Noop struct{}

func (Noop) Notify(context.Context, string, string) error { return nil }

// Multi fans an alert out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, title, message string) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logged wraps a sink so delivery errors are logged and swallowed.
type Logged struct {
	sink Sink
	log  *logger.Logger
}

// NewLogged creates a sink that never fails.
func NewLogged(sink Sink, log *logger.Logger) *Logged {
	return &Logged{sink: sink, log: log}
}

func (l *Logged) Notify(ctx context.Context, title, message string) error {
	if err := l.sink.Notify(ctx, title, message); err != nil {
		l.log.WithContext(ctx).Warn("alert delivery failed", "title", title, "error", err)
	}
	return nil
}
