// Package bootstrap holds the wiring shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"time"

	"ums_backend/internal/adapters/storage"
	"ums_backend/internal/alert"
	"ums_backend/internal/policy"
	"ums_backend/internal/withdraw/purge"
	"ums_backend/internal/withdraw/repository"
	"ums_backend/platform/config"
	"ums_backend/platform/db"
	"ums_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// WithRetry calls fn up to attempts times with quadratic backoff.
func WithRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

// OpenPool connects to Postgres, retrying while the database starts up.
func OpenPool(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	err := WithRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// NewKafkaWriter returns the shared producer, or nil when no brokers are set.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	if !cfg.IsKafkaEnabled() {
		return nil
	}
	return alert.NewWriter(cfg.GetKafkaBrokers())
}

// NewAlertSink fans alerts out to every configured channel. Delivery errors
// are logged, never returned.
func NewAlertSink(cfg *config.Config, writer *kafka.Writer, log *logger.Logger) alert.Sink {
	var sinks alert.Multi
	if writer != nil {
		sinks = append(sinks, alert.NewKafkaSink(writer, cfg.GetAlertMailTopic(), cfg.GetAlertServiceName()))
	}
	if cfg.IsSMTPEnabled() {
		sinks = append(sinks, alert.NewSMTPSink(
			cfg.GetSMTPHost(), cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(), cfg.GetSMTPPassword(),
			cfg.GetAlertEmailFrom(), cfg.GetAlertEmailTo(),
		))
	}
	if len(sinks) == 0 {
		log.Warn("no alert channel configured; purge alerts are logged only")
		return alert.Noop{}
	}
	return alert.NewLogged(sinks, log)
}

// NewReportArchiver returns the MinIO archiver, or nil when MinIO is off.
func NewReportArchiver(ctx context.Context, cfg config.MinIOConfig, log *logger.Logger) purge.ReportArchiver {
	if !cfg.IsMinIOEnabled() {
		return nil
	}

	svc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Warn("purge report archive disabled", "error", err)
		return nil
	}
	bucket := cfg.GetMinioBucketPurgeReports()
	if err := WithRetry(ctx, log, "ensure purge report bucket", 3, time.Second, func() error {
		return svc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Warn("purge report archive disabled", "bucket", bucket, "error", err)
		return nil
	}
	return storage.NewReportArchiver(svc, bucket)
}

// NewPurgeJob wires the purge runner and its job wrapper.
func NewPurgeJob(cfg *config.Config, pool *pgxpool.Pool, cache redis.UniversalClient, idp purge.AccountDeleter, alerts alert.Sink, archiver purge.ReportArchiver, log *logger.Logger) *purge.Job {
	requests := repository.NewRequests(pool)
	policies := policy.NewStore(policy.NewRepository(pool), cache, cfg.GetPolicyCacheTTL(), log)
	purger := purge.NewPurger(db.NewTxManager(pool), requests, repository.NewHistories(pool), idp, alerts, log)

	runner := purge.NewRunner(requests, purger, policies, log, purge.Options{
		BatchSize:        cfg.GetPurgeBatchSize(),
		MaxRetryAttempts: cfg.GetPurgeMaxRetryAttempts(),
		Location:         cfg.GetPurgeLocation(),
	})
	return purge.NewJob(runner, alerts, archiver, log)
}
