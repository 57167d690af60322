package scheduler

import (
	"context"
	"fmt"
	"time"

	"ums_backend/platform/config"
	"ums_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// PeriodicScheduler enqueues the scheduled purge on its cron spec.
type PeriodicScheduler struct {
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

func NewPeriodicScheduler(cfg config.SchedulerConfig, loc *time.Location, log *logger.Logger) (*PeriodicScheduler, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: loc,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				log.Warn("scheduled purge enqueue failed", "error", err)
				return
			}
			log.Info("scheduled purge enqueued", "task_id", info.ID)
		},
	})

	task, err := NewWithdrawPurgeTask(WithdrawPurgePayload{Trigger: TriggerSchedule})
	if err != nil {
		return nil, err
	}

	ttl := lockTTL(cfg)
	entryID, err := scheduler.Register(cfg.GetPurgeSchedule(), task,
		asynq.Queue(queueName(cfg)),
		asynq.Unique(ttl),
		asynq.MaxRetry(0),
		asynq.Timeout(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("register purge schedule %q: %w", cfg.GetPurgeSchedule(), err)
	}
	log.Info("purge schedule registered", "cron", cfg.GetPurgeSchedule(), "entry_id", entryID)

	return &PeriodicScheduler{scheduler: scheduler, log: log}, nil
}

// Run starts the scheduler and stops it when ctx is done.
func (p *PeriodicScheduler) Run(ctx context.Context) {
	if p == nil || p.scheduler == nil {
		return
	}

	if err := p.scheduler.Start(); err != nil {
		p.log.Error("purge scheduler stopped", "error", err)
		return
	}
	<-ctx.Done()
	p.scheduler.Shutdown()
}
