package purge

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sort"
	"time"

	"ums_backend/internal/policy"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/apperr"

	"github.com/google/uuid"
)

// memStore is an in-memory withdraw_requests plus history table.
type memStore struct {
	requests map[uuid.UUID]domain.WithdrawRequest
	history  []domain.ProcessHistoryEntry
}

func newMemStore(reqs ...domain.WithdrawRequest) *memStore {
	s := &memStore{requests: map[uuid.UUID]domain.WithdrawRequest{}}
	for _, r := range reqs {
		s.requests[r.ID] = r
	}
	return s
}

func (s *memStore) FindByUserID(_ context.Context, userID uuid.UUID) (domain.WithdrawRequest, error) {
	for _, r := range s.requests {
		if r.UserID == userID {
			return r, nil
		}
	}
	return domain.WithdrawRequest{}, apperr.NotFound("withdraw request not found")
}

func (s *memStore) eligible(status domain.PurgeStatus, before time.Time) []domain.WithdrawRequest {
	var out []domain.WithdrawRequest
	for _, r := range s.requests {
		if r.PurgeStatus == status && r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *memStore) FindEligiblePage(_ context.Context, status domain.PurgeStatus, before time.Time, after *domain.PageCursor, limit int) ([]domain.WithdrawRequest, error) {
	var page []domain.WithdrawRequest
	for _, r := range s.eligible(status, before) {
		if after != nil {
			if r.CreatedAt.Before(after.CreatedAt) ||
				(r.CreatedAt.Equal(after.CreatedAt) && r.ID.String() <= after.ID.String()) {
				continue
			}
		}
		page = append(page, r)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}

func (s *memStore) CountEligible(_ context.Context, status domain.PurgeStatus, before time.Time) (int64, error) {
	return int64(len(s.eligible(status, before))), nil
}

func (s *memStore) Create(_ context.Context, req domain.WithdrawRequest) (domain.WithdrawRequest, error) {
	s.requests[req.ID] = req
	return req, nil
}

func (s *memStore) UpdateStatus(_ context.Context, req domain.WithdrawRequest, status domain.PurgeStatus, tryCount *int) (domain.WithdrawRequest, error) {
	cur, ok := s.requests[req.ID]
	if !ok || cur.PurgeStatus != req.PurgeStatus {
		return domain.WithdrawRequest{}, apperr.Conflict("withdraw request changed concurrently")
	}
	cur.PurgeStatus = status
	if tryCount != nil {
		cur.PurgeTryCount = *tryCount
	}
	s.requests[req.ID] = cur
	return cur, nil
}

func (s *memStore) Append(_ context.Context, e domain.ProcessHistoryEntry) (domain.ProcessHistoryEntry, error) {
	e.ID = uuid.New()
	s.history = append(s.history, e)
	return e, nil
}

func (s *memStore) ListByRequest(_ context.Context, requestID uuid.UUID) ([]domain.ProcessHistoryEntry, error) {
	var out []domain.ProcessHistoryEntry
	for _, e := range s.history {
		if e.RequestID == requestID {
			out = append(out, e)
		}
	}
	return out, nil
}

// snapTx rolls memStore back when fn fails or panics.
type snapTx struct{ s *memStore }

func (t snapTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	requests := maps.Clone(t.s.requests)
	history := slices.Clone(t.s.history)
	defer func() {
		if rec := recover(); rec != nil {
			t.s.requests, t.s.history = requests, history
			panic(rec)
		}
		if err != nil {
			t.s.requests, t.s.history = requests, history
		}
	}()
	return fn(ctx)
}

type fakeIdP struct {
	errs    map[string]error
	deleted []string
}

func (f *fakeIdP) DeleteUser(_ context.Context, userID string) error {
	if err := f.errs[userID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, userID)
	return nil
}

type fakePolicies struct {
	cutoff int
	err    error
}

func (f fakePolicies) GetInt(_ context.Context, key policy.Key) (int, error) {
	if key != policy.KeyUserPurgeCutoffDays {
		return 0, apperr.NotFound("policy not found")
	}
	return f.cutoff, f.err
}

type recordedAlert struct{ title, message string }

type fakeAlerts struct {
	sent []recordedAlert
	err  error
}

func (f *fakeAlerts) Notify(_ context.Context, title, message string) error {
	f.sent = append(f.sent, recordedAlert{title, message})
	return f.err
}

var errIdPDown = apperr.Unavailable("keycloak unavailable")

var errStore = errors.New("connection reset")

func newRequest(status domain.PurgeStatus, tryCount int, created time.Time) domain.WithdrawRequest {
	return domain.WithdrawRequest{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		Email:         "user@example.com",
		PurgeStatus:   status,
		PurgeTryCount: tryCount,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
}
