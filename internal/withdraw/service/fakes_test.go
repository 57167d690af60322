package service

import (
	"context"
	"maps"
	"slices"
	"time"

	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/apperr"

	"github.com/google/uuid"
)

// world is an in-memory database. snapTx restores it when fn fails so tests
// observe the same all-or-nothing outcome as a Postgres transaction.
type world struct {
	users    map[uuid.UUID]bool
	requests map[uuid.UUID]domain.WithdrawRequest
	history  []domain.ProcessHistoryEntry
	events   []string
}

func newWorld(users ...uuid.UUID) *world {
	w := &world{users: map[uuid.UUID]bool{}, requests: map[uuid.UUID]domain.WithdrawRequest{}}
	for _, u := range users {
		w.users[u] = true
	}
	return w
}

type snapTx struct{ w *world }

func (t snapTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	users := maps.Clone(t.w.users)
	requests := maps.Clone(t.w.requests)
	history := slices.Clone(t.w.history)
	events := slices.Clone(t.w.events)

	if err := fn(ctx); err != nil {
		t.w.users, t.w.requests, t.w.history, t.w.events = users, requests, history, events
		return err
	}
	return nil
}

type fakeUsers struct{ w *world }

func (f fakeUsers) DeleteByUID(_ context.Context, uid uuid.UUID) error {
	if !f.w.users[uid] {
		return apperr.NotFound("user not found")
	}
	delete(f.w.users, uid)
	return nil
}

type fakeRequests struct{ w *world }

func (f fakeRequests) FindByUserID(_ context.Context, userID uuid.UUID) (domain.WithdrawRequest, error) {
	for _, r := range f.w.requests {
		if r.UserID == userID {
			return r, nil
		}
	}
	return domain.WithdrawRequest{}, apperr.NotFound("withdraw request not found")
}

func (f fakeRequests) FindEligiblePage(context.Context, domain.PurgeStatus, time.Time, *domain.PageCursor, int) ([]domain.WithdrawRequest, error) {
	return nil, nil
}

func (f fakeRequests) CountEligible(context.Context, domain.PurgeStatus, time.Time) (int64, error) {
	return 0, nil
}

func (f fakeRequests) Create(_ context.Context, req domain.WithdrawRequest) (domain.WithdrawRequest, error) {
	now := time.Now()
	req.CreatedAt, req.UpdatedAt = now, now
	f.w.requests[req.ID] = req
	return req, nil
}

func (f fakeRequests) UpdateStatus(_ context.Context, req domain.WithdrawRequest, status domain.PurgeStatus, tryCount *int) (domain.WithdrawRequest, error) {
	req.PurgeStatus = status
	if tryCount != nil {
		req.PurgeTryCount = *tryCount
	}
	f.w.requests[req.ID] = req
	return req, nil
}

type fakeHistories struct{ w *world }

func (f fakeHistories) Append(_ context.Context, e domain.ProcessHistoryEntry) (domain.ProcessHistoryEntry, error) {
	e.ID = uuid.New()
	f.w.history = append(f.w.history, e)
	return e, nil
}

func (f fakeHistories) ListByRequest(_ context.Context, requestID uuid.UUID) ([]domain.ProcessHistoryEntry, error) {
	var out []domain.ProcessHistoryEntry
	for _, e := range f.w.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOutbox struct{ w *world }

func (f fakeOutbox) Append(_ context.Context, eventType, aggregateID string, _ any) (uuid.UUID, error) {
	f.w.events = append(f.w.events, eventType+":"+aggregateID)
	return uuid.New(), nil
}

type fakeIdP struct {
	email      string
	emailErr   error
	disableErr error
	disabled   []string
}

func (f *fakeIdP) GetUserEmail(context.Context, string) (string, error) {
	return f.email, f.emailErr
}

func (f *fakeIdP) DisableUser(_ context.Context, userID string) error {
	if f.disableErr != nil {
		return f.disableErr
	}
	f.disabled = append(f.disabled, userID)
	return nil
}
