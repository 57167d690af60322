// Package purge removes identity provider accounts of withdrawn users once
// their grace period is over.
package purge

import (
	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/apperr"
)

// Transition is the state a request moves to after one purge attempt.
type Transition struct {
	Status   domain.PurgeStatus
	TryCount int
}

// Exhausted reports whether the request ran out of retries.
func (t Transition) Exhausted() bool {
	return t.Status == domain.PurgeStatusFailed
}

// Succeed is the transition after a successful attempt. The try count is kept.
func Succeed(req domain.WithdrawRequest) Transition {
	return Transition{Status: domain.PurgeStatusCompleted, TryCount: req.PurgeTryCount}
}

// NextOnFailure is the transition after a failed attempt. A request that
// still has budget retries with an incremented count; otherwise it fails with
// the count unchanged.
func NextOnFailure(req domain.WithdrawRequest, maxRetryAttempts int) Transition {
	if req.PurgeTryCount+1 < maxRetryAttempts {
		return Transition{Status: domain.PurgeStatusRetrying, TryCount: req.PurgeTryCount + 1}
	}
	return Transition{Status: domain.PurgeStatusFailed, TryCount: req.PurgeTryCount}
}

// ErrorClass tells the runner how to treat an identity provider error.
type ErrorClass int

const (
	// ClassTransient consumes one retry.
	ClassTransient ErrorClass = iota
	// ClassGone means the account no longer exists.
	ClassGone
)

func (c ErrorClass) String() string {
	if c == ClassGone {
		return "gone"
	}
	return "transient"
}

// ClassifyError maps an identity provider delete error.
func ClassifyError(err error) ErrorClass {
	if apperr.Is(err, apperr.KindNotFound) {
		return ClassGone
	}
	return ClassTransient
}
