package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"ums_backend/platform/apperr"
	"ums_backend/platform/config"
	"ums_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

type Client struct {
	client    *asynq.Client
	queue     string
	uniqueTTL time.Duration
	log       *logger.Logger
}

// PurgeEnqueuer queues an out-of-schedule purge run.
type PurgeEnqueuer interface {
	EnqueueForcePurge(ctx context.Context, requestedBy string) (string, error)
}

func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    asynq.NewClient(opt),
		queue:     queueName(cfg),
		uniqueTTL: lockTTL(cfg),
		log:       log,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueForcePurge queues one purge run and returns its task id. The run is
// fire-and-forget: it is never retried, and a second forced request while one
// is queued is a Conflict whoever sends it. A scheduled run is a different
// task; the worker lease keeps the two from overlapping.
func (c *Client) EnqueueForcePurge(ctx context.Context, requestedBy string) (string, error) {
	if c == nil || c.client == nil {
		return "", apperr.Unavailable("scheduler is not configured").WithOp("scheduler.EnqueueForcePurge")
	}

	task, err := forcePurgeTask()
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.Unique(c.uniqueTTL),
		asynq.MaxRetry(0),
		asynq.Timeout(c.uniqueTTL),
	)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		c.log.Info("forced purge already queued", "requested_by", requestedBy)
		return "", apperr.Conflict("a purge run is already queued").WithOp("scheduler.EnqueueForcePurge")
	}
	if err != nil {
		return "", apperr.Wrap(apperr.KindUnavailable, "enqueue purge", err).WithOp("scheduler.EnqueueForcePurge")
	}
	c.log.Info("forced purge queued", "task_id", info.ID, "requested_by", requestedBy)
	return info.ID, nil
}

func forcePurgeTask() (*asynq.Task, error) {
	return NewWithdrawPurgeTask(WithdrawPurgePayload{Trigger: TriggerForce})
}

// NewRedis opens the go-redis client shared by the policy cache and the
// purge lease.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opt.TLSConfig = tlsConfig(opt.TLSConfig, cfg.GetRedisTLSInsecure())
	return redis.NewClient(opt), nil
}

func queueName(cfg config.SchedulerConfig) string {
	if q := cfg.GetAsynqQueueName(); q != "" {
		return q
	}
	return "default"
}

func lockTTL(cfg config.SchedulerConfig) time.Duration {
	if ttl := cfg.GetPurgeLockTTL(); ttl > 0 {
		return ttl
	}
	return 2 * time.Hour
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig(opt.TLSConfig, tlsInsecure),
	}, nil
}

func tlsConfig(base *tls.Config, insecure bool) *tls.Config {
	if base != nil {
		clone := base.Clone()
		if insecure {
			clone.InsecureSkipVerify = true
		}
		return clone
	}
	if insecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return nil
}
