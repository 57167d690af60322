package purge

import (
	"context"
	"fmt"
	"time"

	"ums_backend/internal/policy"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/internal/withdraw/repository"
	"ums_backend/platform/apperr"
	"ums_backend/platform/logger"
)

type itemPurger interface {
	Purge(ctx context.Context, req domain.WithdrawRequest) error
	RecordFailure(ctx context.Context, req domain.WithdrawRequest, maxRetryAttempts int) (Transition, error)
}

type cutoffSource interface {
	GetInt(ctx context.Context, key policy.Key) (int, error)
}

// Options tune a Runner.
type Options struct {
	BatchSize        int
	MaxRetryAttempts int
	Location         *time.Location
	Now              func() time.Time
}

// Runner purges every eligible request in one status.
type Runner struct {
	requests repository.RequestReader
	purger   itemPurger
	policies cutoffSource
	log      *logger.Logger

	batchSize int
	maxRetry  int
	loc       *time.Location
	now       func() time.Time
}

func NewRunner(requests repository.RequestReader, purger itemPurger, policies cutoffSource, log *logger.Logger, opts Options) *Runner {
	r := &Runner{
		requests:  requests,
		purger:    purger,
		policies:  policies,
		log:       log,
		batchSize: opts.BatchSize,
		maxRetry:  opts.MaxRetryAttempts,
		loc:       opts.Location,
		now:       opts.Now,
	}
	if r.batchSize < 1 {
		r.batchSize = 100
	}
	if r.maxRetry < 1 {
		r.maxRetry = 3
	}
	if r.loc == nil {
		r.loc = time.UTC
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// CreatedBefore is the exclusive upper bound on created_at for a run at now.
// Everything created on or before the calendar day cutoffDays before today
// is eligible, whatever the time of day the run starts.
func CreatedBefore(now time.Time, loc *time.Location, cutoffDays int) time.Time {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, 1-cutoffDays)
}

// Run purges the requests in target. One failing item never stops the
// batch; only store errors abort the pass.
func (r *Runner) Run(ctx context.Context, target domain.PurgeStatus) (domain.BatchResult, error) {
	result := domain.BatchResult{Target: target}
	if !target.Purgeable() {
		return result, apperr.Validation(fmt.Sprintf("status %s cannot be purged", target)).WithOp("purge.Run")
	}

	started := time.Now()
	defer func() {
		runSeconds.WithLabelValues(string(target)).Observe(time.Since(started).Seconds())
	}()

	cutoffDays, err := r.policies.GetInt(ctx, policy.KeyUserPurgeCutoffDays)
	if err != nil {
		return result, fmt.Errorf("load purge cutoff: %w", err)
	}
	if cutoffDays < 0 {
		return result, apperr.Internal(fmt.Sprintf("negative purge cutoff %d", cutoffDays)).WithOp("purge.Run")
	}
	before := CreatedBefore(r.now(), r.loc, cutoffDays)

	total, err := r.requests.CountEligible(ctx, target, before)
	if err != nil {
		return result, err
	}
	result.Total = total

	pages := int((total + int64(r.batchSize) - 1) / int64(r.batchSize))
	r.log.Info("purge pass started",
		"target", string(target),
		"total", total,
		"pages", pages,
		"created_before", before.Format(time.RFC3339),
	)

	var cursor *domain.PageCursor
	for page := 0; page < pages; page++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		items, err := r.requests.FindEligiblePage(ctx, target, before, cursor, r.batchSize)
		if err != nil {
			return result, err
		}
		if len(items) == 0 {
			break
		}

		r.log.BatchProgress(string(target), page+1, pages, result.Success, result.Failed)
		for _, req := range items {
			if err := r.purgeOne(ctx, req); err != nil {
				result.Failed++
				r.fail(ctx, target, req, err)
				continue
			}
			result.Success++
			itemsTotal.WithLabelValues(string(target), outcomeSuccess).Inc()
			r.log.PurgeItem(req.ID.String(), req.UserID.String(), string(domain.PurgeStatusCompleted), req.PurgeTryCount, nil)
		}
		cursor = domain.CursorOf(items[len(items)-1])
	}

	r.log.Info("purge pass finished", "result", result.String())
	return result, nil
}

// purgeOne turns a panic in the item transaction into an error so the rest
// of the page still runs.
func (r *Runner) purgeOne(ctx context.Context, req domain.WithdrawRequest) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("purge panicked: %v", rec)
		}
	}()
	return r.purger.Purge(ctx, req)
}

func (r *Runner) fail(ctx context.Context, target domain.PurgeStatus, req domain.WithdrawRequest, cause error) {
	next, err := r.recordFailure(ctx, req)
	if err != nil {
		itemsTotal.WithLabelValues(string(target), outcomeBookkeeping).Inc()
		r.log.PurgeItem(req.ID.String(), req.UserID.String(), string(req.PurgeStatus), req.PurgeTryCount, cause)
		r.log.Error("record purge failure", "request_id", req.ID.String(), "error", err)
		return
	}

	outcome := outcomeRetry
	if next.Exhausted() {
		outcome = outcomeFailed
	}
	itemsTotal.WithLabelValues(string(target), outcome).Inc()
	r.log.PurgeItem(req.ID.String(), req.UserID.String(), string(next.Status), next.TryCount, cause)
}

func (r *Runner) recordFailure(ctx context.Context, req domain.WithdrawRequest) (next Transition, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("record failure panicked: %v", rec)
		}
	}()
	return r.purger.RecordFailure(ctx, req, r.maxRetry)
}
