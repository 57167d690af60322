package policy

import (
	"context"
	"errors"
	"fmt"

	"ums_backend/platform/apperr"
	"ums_backend/platform/db"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

// Repository reads policies from Postgres.
type Repository struct {
	pool db.Executor
	sb   sq.StatementBuilderType
}

// NewRepository creates a policy repository.
func NewRepository(pool db.Executor) *Repository {
	return &Repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetByKey returns the policy stored under key. A missing key is a
// deployment error and is reported as NotFound.
func (r *Repository) GetByKey(ctx context.Context, key Key) (Policy, error) {
	query, args, err := r.sb.
		Select("key", "value").
		From("policies").
		Where(sq.Eq{"key": string(key)}).
		ToSql()
	if err != nil {
		return Policy{}, fmt.Errorf("build policy query: %w", err)
	}

	var p Policy
	var k string
	err = db.Conn(ctx, r.pool).QueryRow(ctx, query, args...).Scan(&k, &p.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, apperr.NotFound(fmt.Sprintf("policy %q not found", key)).WithOp("policy.GetByKey")
	}
	if err != nil {
		return Policy{}, fmt.Errorf("get policy %s: %w", key, err)
	}
	p.Key = Key(k)
	return p, nil
}
