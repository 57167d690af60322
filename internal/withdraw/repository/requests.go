// Package repository persists withdraw requests and their process history.
// Every query runs on the transaction carried by ctx when there is one.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/apperr"
	"ums_backend/platform/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	requestsTable = "withdraw_requests"

	colID            = "id"
	colUserID        = "user_id"
	colEmail         = "email"
	colPurgeStatus   = "purge_status"
	colPurgeTryCount = "purge_try_count"
	colCreatedAt     = "created_at"
	colUpdatedAt     = "updated_at"

	pgUniqueViolation = "23505"
)

var requestColumns = []string{colID, colUserID, colEmail, colPurgeStatus, colPurgeTryCount, colCreatedAt, colUpdatedAt}

// Requests is the Postgres withdraw request store.
type Requests struct {
	pool db.Executor
	sb   sq.StatementBuilderType
}

// NewRequests creates a withdraw request store.
func NewRequests(pool db.Executor) *Requests {
	return &Requests{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *Requests) FindByUserID(ctx context.Context, userID uuid.UUID) (domain.WithdrawRequest, error) {
	query, args, err := r.sb.
		Select(requestColumns...).
		From(requestsTable).
		Where(sq.Eq{colUserID: userID.String()}).
		ToSql()
	if err != nil {
		return domain.WithdrawRequest{}, fmt.Errorf("build find request query: %w", err)
	}

	req, err := scanRequest(db.Conn(ctx, r.pool).QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WithdrawRequest{}, apperr.NotFound("withdraw request not found").WithOp("withdraw.FindByUserID")
	}
	if err != nil {
		return domain.WithdrawRequest{}, fmt.Errorf("find withdraw request: %w", err)
	}
	return req, nil
}

func (r *Requests) Create(ctx context.Context, req domain.WithdrawRequest) (domain.WithdrawRequest, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	query, args, err := r.sb.
		Insert(requestsTable).
		Columns(colID, colUserID, colEmail, colPurgeStatus, colPurgeTryCount).
		Values(req.ID, req.UserID, req.Email, string(req.PurgeStatus), req.PurgeTryCount).
		Suffix("RETURNING " + colCreatedAt + ", " + colUpdatedAt).
		ToSql()
	if err != nil {
		return domain.WithdrawRequest{}, fmt.Errorf("build insert request query: %w", err)
	}

	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WithdrawRequest{}, apperr.Conflict("withdraw request already exists").WithOp("withdraw.Create")
		}
		return domain.WithdrawRequest{}, fmt.Errorf("insert withdraw request: %w", err)
	}
	return req, nil
}

func (r *Requests) UpdateStatus(ctx context.Context, req domain.WithdrawRequest, newStatus domain.PurgeStatus, newTryCount *int) (domain.WithdrawRequest, error) {
	if req.PurgeStatus.Terminal() {
		return domain.WithdrawRequest{}, apperr.Conflict(
			fmt.Sprintf("withdraw request %s is already %s", req.ID, req.PurgeStatus),
		).WithOp("withdraw.UpdateStatus")
	}

	q := r.sb.
		Update(requestsTable).
		Set(colPurgeStatus, string(newStatus)).
		Set(colUpdatedAt, sq.Expr("now()"))
	if newTryCount != nil {
		q = q.Set(colPurgeTryCount, *newTryCount)
	}

	query, args, err := q.
		Where(sq.Eq{colID: req.ID.String(), colPurgeStatus: string(req.PurgeStatus)}).
		ToSql()
	if err != nil {
		return domain.WithdrawRequest{}, fmt.Errorf("build update status query: %w", err)
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return domain.WithdrawRequest{}, fmt.Errorf("update withdraw request status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.WithdrawRequest{}, apperr.Conflict(
			fmt.Sprintf("withdraw request %s is no longer %s", req.ID, req.PurgeStatus),
		).WithOp("withdraw.UpdateStatus")
	}

	req.PurgeStatus = newStatus
	if newTryCount != nil {
		req.PurgeTryCount = *newTryCount
	}
	return req, nil
}

func (r *Requests) FindEligiblePage(ctx context.Context, status domain.PurgeStatus, createdBefore time.Time, after *domain.PageCursor, limit int) ([]domain.WithdrawRequest, error) {
	if limit < 1 {
		return nil, apperr.Validation("page size must be positive")
	}

	where := eligible(status, createdBefore)
	if after != nil {
		where = append(where, sq.Expr("("+colCreatedAt+", "+colID+") > (?, ?)", after.CreatedAt, after.ID.String()))
	}

	query, args, err := r.sb.
		Select(requestColumns...).
		From(requestsTable).
		Where(where).
		OrderBy(colCreatedAt+" ASC", colID+" ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build eligible page query: %w", err)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query eligible requests: %w", err)
	}
	defer rows.Close()

	page := make([]domain.WithdrawRequest, 0, limit)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligible request: %w", err)
		}
		page = append(page, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate eligible requests: %w", err)
	}
	return page, nil
}

func (r *Requests) CountEligible(ctx context.Context, status domain.PurgeStatus, createdBefore time.Time) (int64, error) {
	query, args, err := r.sb.
		Select("COUNT(*)").
		From(requestsTable).
		Where(eligible(status, createdBefore)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count eligible requests: %w", err)
	}
	return total, nil
}

func eligible(status domain.PurgeStatus, createdBefore time.Time) sq.And {
	return sq.And{
		sq.Eq{colPurgeStatus: string(status)},
		sq.Lt{colCreatedAt: createdBefore},
	}
}

func scanRequest(row pgx.Row) (domain.WithdrawRequest, error) {
	var req domain.WithdrawRequest
	var status string
	if err := row.Scan(&req.ID, &req.UserID, &req.Email, &status, &req.PurgeTryCount, &req.CreatedAt, &req.UpdatedAt); err != nil {
		return domain.WithdrawRequest{}, err
	}
	parsed, err := domain.ParsePurgeStatus(status)
	if err != nil {
		return domain.WithdrawRequest{}, apperr.Wrap(apperr.KindInternal, "corrupt withdraw request row", err)
	}
	req.PurgeStatus = parsed
	return req, nil
}

var _ RequestStore = (*Requests)(nil)
