package purge

import (
	"context"

	"ums_backend/internal/alert"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/internal/withdraw/repository"
	"ums_backend/platform/db"
	"ums_backend/platform/logger"
)

// AccountDeleter deletes identity provider accounts.
type AccountDeleter interface {
	DeleteUser(ctx context.Context, userID string) error
}

// Purger performs the per-request transactions.
type Purger struct {
	tx        db.Transactor
	requests  repository.RequestWriter
	histories repository.HistoryStore
	idp       AccountDeleter
	alerts    alert.Sink
	log       *logger.Logger
}

func NewPurger(tx db.Transactor, requests repository.RequestWriter, histories repository.HistoryStore, idp AccountDeleter, alerts alert.Sink, log *logger.Logger) *Purger {
	return &Purger{tx: tx, requests: requests, histories: histories, idp: idp, alerts: alerts, log: log}
}

// Purge marks req COMPLETED, records the deletion and deletes the account in
// one transaction. The remote delete runs last so its failure rolls back the
// local writes. An account that is already gone counts as deleted.
func (p *Purger) Purge(ctx context.Context, req domain.WithdrawRequest) error {
	next := Succeed(req)
	return p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := p.requests.UpdateStatus(ctx, req, next.Status, &next.TryCount); err != nil {
			return err
		}
		if _, err := p.histories.Append(ctx, domain.ProcessHistoryEntry{
			UserID:    req.UserID,
			RequestID: req.ID,
			Process:   domain.ProcessKeycloakUserDelete,
			IsPassed:  true,
		}); err != nil {
			return err
		}

		if err := p.idp.DeleteUser(ctx, req.UserID.String()); err != nil {
			if ClassifyError(err) == ClassGone {
				p.log.WithContext(ctx).Info("identity provider account already gone", "user_id", req.UserID.String())
				return nil
			}
			return err
		}
		return nil
	})
}

// RecordFailure applies the failure transition and a failed history entry.
// Exhausted requests raise a critical alert once the transaction commits.
func (p *Purger) RecordFailure(ctx context.Context, req domain.WithdrawRequest, maxRetryAttempts int) (Transition, error) {
	next := NextOnFailure(req, maxRetryAttempts)
	err := p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := p.requests.UpdateStatus(ctx, req, next.Status, &next.TryCount); err != nil {
			return err
		}
		_, err := p.histories.Append(ctx, domain.ProcessHistoryEntry{
			UserID:    req.UserID,
			RequestID: req.ID,
			Process:   domain.ProcessKeycloakUserDelete,
			IsPassed:  false,
		})
		return err
	})
	if err != nil {
		return next, err
	}

	if next.Exhausted() {
		uid := req.UserID.String()
		if err := p.alerts.Notify(ctx, alert.TitlePurgeCritical, alert.CriticalPurgeMessage(uid)); err != nil {
			p.log.WithContext(ctx).Warn("critical purge alert failed", "user_id", uid, "error", err)
		}
	}
	return next, nil
}
