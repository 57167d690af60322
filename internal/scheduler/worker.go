package scheduler

import (
	"context"
	"fmt"

	"ums_backend/internal/withdraw/purge"
	"ums_backend/platform/config"
	"ums_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type purgeJob interface {
	Run(ctx context.Context, trigger string) purge.Report
}

type leaser interface {
	Acquire(ctx context.Context) (func(context.Context) error, bool, error)
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	job    purgeJob
	lease  leaser
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, job purgeJob, lease leaser, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 2
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		job:    job,
		lease:  lease,
		log:    log,
	}

	mux.HandleFunc(TaskWithdrawPurge, w.handleWithdrawPurge)

	return w, nil
}

// handleWithdrawPurge runs the job while holding the lease. A run that finds
// the lease taken is skipped, not retried.
func (w *Worker) handleWithdrawPurge(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseWithdrawPurgePayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	release, ok, err := w.lease.Acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		w.log.Info("withdraw purge already running, skipping", "trigger", payload.Trigger)
		return nil
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			w.log.Warn("purge lease release failed", "error", err)
		}
	}()

	w.log.Info("withdraw purge triggered", "trigger", payload.Trigger)
	report := w.job.Run(ctx, payload.Trigger)
	if !report.Succeeded() {
		w.log.Warn("withdraw purge finished with errors", "error", report.Error)
	}
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
