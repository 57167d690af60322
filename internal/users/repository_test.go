package users

import (
	"context"
	"regexp"
	"testing"
	"time"

	"ums_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v2"
)

func TestDeleteByUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	uid := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE uid = $1")).
		WithArgs(uid.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	if err := New(mock).DeleteByUID(context.Background(), uid); err != nil {
		t.Fatalf("DeleteByUID returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteByUIDMissingUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	uid := uuid.New()
	mock.ExpectExec("DELETE FROM users").
		WithArgs(uid.String()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = New(mock).DeleteByUID(context.Background(), uid)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestGetByUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	uid := uuid.New()
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT uid, nickname, created_at, updated_at FROM users WHERE uid = $1")).
		WithArgs(uid.String()).
		WillReturnRows(pgxmock.NewRows([]string{"uid", "nickname", "created_at", "updated_at"}).AddRow(uid, "alice", now, now))

	u, err := New(mock).GetByUID(context.Background(), uid)
	if err != nil {
		t.Fatalf("GetByUID returned error: %v", err)
	}
	if u.Nickname != "alice" {
		t.Fatalf("expected alice, got %s", u.Nickname)
	}
}
