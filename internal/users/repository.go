// Package users is the local user record store. Only the lookups and the
// hard delete used by withdrawal live here.
package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ums_backend/platform/apperr"
	"ums_backend/platform/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is the application-side profile keyed by the identity provider UID.
type User struct {
	UID       uuid.UUID
	Nickname  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository reads and deletes local users.
type Repository struct {
	pool db.Executor
	sb   sq.StatementBuilderType
}

// New creates a user repository.
func New(pool db.Executor) *Repository {
	return &Repository{pool: pool, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

// GetByUID returns the user or NotFound.
func (r *Repository) GetByUID(ctx context.Context, uid uuid.UUID) (User, error) {
	query, args, err := r.sb.
		Select("uid", "nickname", "created_at", "updated_at").
		From("users").
		Where(sq.Eq{"uid": uid.String()}).
		ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build get user query: %w", err)
	}

	var u User
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&u.UID, &u.Nickname, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, apperr.NotFound("user not found").WithOp("users.GetByUID")
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// DeleteByUID removes the user row. A missing user is NotFound.
func (r *Repository) DeleteByUID(ctx context.Context, uid uuid.UUID) error {
	query, args, err := r.sb.
		Delete("users").
		Where(sq.Eq{"uid": uid.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user query: %w", err)
	}

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user not found").WithOp("users.DeleteByUID")
	}
	return nil
}
