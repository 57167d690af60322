package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ums_backend/internal/bootstrap"
	"ums_backend/internal/keycloak"
	"ums_backend/internal/outbox"
	"ums_backend/internal/scheduler"
	"ums_backend/platform/config"
	"ums_backend/platform/db"
	"ums_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "schedule", cfg.GetPurgeSchedule())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.OpenPool(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	cache, err := scheduler.NewRedis(cfg)
	if err != nil {
		log.Error("failed to initialize redis", "error", err)
		panic("failed to initialize redis: " + err.Error())
	}
	defer func() { _ = cache.Close() }()

	writer := bootstrap.NewKafkaWriter(cfg)
	if writer != nil {
		defer func() { _ = writer.Close() }()
	}

	alerts := bootstrap.NewAlertSink(cfg, writer, log)
	archiver := bootstrap.NewReportArchiver(ctx, cfg, log)
	job := bootstrap.NewPurgeJob(cfg, pool, cache, keycloak.New(cfg), alerts, archiver, log)

	if cfg.IsOutboxRelayEnabled() {
		relay := outbox.NewRelay(outbox.New(pool), db.NewTxManager(pool), writer, log,
			cfg.GetOutboxRelayInterval(), cfg.GetOutboxRelayBatchSize())
		go relay.Run(ctx)
		log.Info("outbox relay started", "interval", cfg.GetOutboxRelayInterval().String())
	}

	periodic, err := scheduler.NewPeriodicScheduler(cfg, cfg.GetPurgeLocation(), log)
	if err != nil {
		log.Error("failed to initialize purge schedule", "error", err)
		panic("failed to initialize purge schedule: " + err.Error())
	}
	go periodic.Run(ctx)

	lease := scheduler.NewLease(cache, "", cfg.GetPurgeLockTTL())
	worker, err := scheduler.NewWorker(cfg, job, lease, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
