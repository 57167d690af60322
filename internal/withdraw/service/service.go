// Package service implements user withdrawal. A withdrawal removes the
// application profile right away and leaves a PENDING purge request behind
// for the identity provider account.
package service

import (
	"context"

	"ums_backend/internal/outbox"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/internal/withdraw/repository"
	"ums_backend/platform/apperr"
	"ums_backend/platform/db"
	"ums_backend/platform/logger"

	"github.com/google/uuid"
)

// UserDeleter removes the application-side profile.
type UserDeleter interface {
	DeleteByUID(ctx context.Context, uid uuid.UUID) error
}

// IdentityProvider is the subset of the Keycloak client used on withdrawal.
type IdentityProvider interface {
	GetUserEmail(ctx context.Context, userID string) (string, error)
	DisableUser(ctx context.Context, userID string) error
}

// Detail is a withdraw request with its process history.
type Detail struct {
	Request domain.WithdrawRequest
	History []domain.ProcessHistoryEntry
}

type Service struct {
	tx        db.Transactor
	users     UserDeleter
	requests  repository.RequestStore
	histories repository.HistoryStore
	events    outbox.Writer
	idp       IdentityProvider
	log       *logger.Logger
}

func New(tx db.Transactor, users UserDeleter, requests repository.RequestStore, histories repository.HistoryStore, events outbox.Writer, idp IdentityProvider, log *logger.Logger) *Service {
	return &Service{
		tx:        tx,
		users:     users,
		requests:  requests,
		histories: histories,
		events:    events,
		idp:       idp,
		log:       log,
	}
}

// Withdraw deletes the user's profile, opens a purge request, publishes the
// withdraw event and disables the identity provider account. Every step runs
// in one transaction; the account is disabled last so a failure there rolls
// the local changes back.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID) (domain.WithdrawRequest, error) {
	var created domain.WithdrawRequest
	uid := userID.String()

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.DeleteByUID(ctx, userID); err != nil {
			return err
		}

		if _, err := s.requests.FindByUserID(ctx, userID); err == nil {
			return apperr.Conflict("withdraw request already exists").WithOp("withdraw")
		} else if !apperr.Is(err, apperr.KindNotFound) {
			return err
		}

		email, err := s.idp.GetUserEmail(ctx, uid)
		if err != nil {
			return err
		}

		created, err = s.requests.Create(ctx, domain.WithdrawRequest{
			ID:          uuid.New(),
			UserID:      userID,
			Email:       email,
			PurgeStatus: domain.PurgeStatusPending,
		})
		if err != nil {
			return err
		}

		if _, err := s.histories.Append(ctx, domain.ProcessHistoryEntry{
			UserID:    userID,
			RequestID: created.ID,
			Process:   domain.ProcessApplicationUserDelete,
			IsPassed:  true,
		}); err != nil {
			return err
		}

		if _, err := s.events.Append(ctx, outbox.EventUserWithdraw, uid, outbox.UserWithdrawEvent{UID: uid}); err != nil {
			return err
		}

		return s.idp.DisableUser(ctx, uid)
	})
	if err != nil {
		s.log.WithContext(ctx).Warn("withdraw failed", "user_id", uid, "error", err)
		return domain.WithdrawRequest{}, err
	}

	s.log.WithContext(ctx).Info("user withdrawn", "user_id", uid, "request_id", created.ID.String())
	return created, nil
}

// Get returns the withdraw request of a user along with its history.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (Detail, error) {
	req, err := s.requests.FindByUserID(ctx, userID)
	if err != nil {
		return Detail{}, err
	}

	history, err := s.histories.ListByRequest(ctx, req.ID)
	if err != nil {
		return Detail{}, err
	}
	if history == nil {
		history = []domain.ProcessHistoryEntry{}
	}
	return Detail{Request: req, History: history}, nil
}

