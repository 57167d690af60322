// Command withdraw-purge runs one purge immediately, or queues one for the
// scheduler worker with -force.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ums_backend/internal/bootstrap"
	"ums_backend/internal/keycloak"
	"ums_backend/internal/scheduler"
	"ums_backend/platform/config"
	"ums_backend/platform/logger"
)

func main() {
	force := flag.Bool("force", false, "enqueue a purge for the scheduler worker instead of running it here")
	requestedBy := flag.String("requested-by", "cli", "operator recorded on a forced run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *force {
		os.Exit(enqueue(ctx, cfg, log, *requestedBy))
	}
	os.Exit(run(ctx, cfg, log))
}

func enqueue(ctx context.Context, cfg *config.Config, log *logger.Logger, requestedBy string) int {
	client, err := scheduler.NewClient(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	taskID, err := client.EnqueueForcePurge(ctx, requestedBy)
	if err != nil {
		log.Error("failed to enqueue purge", "error", err)
		return 1
	}
	log.Info("purge enqueued", "task_id", taskID)
	return 0
}

// run holds the same lease as the worker so it never overlaps a scheduled run.
func run(ctx context.Context, cfg *config.Config, log *logger.Logger) int {
	pool, err := bootstrap.OpenPool(ctx, cfg, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pool.Close()

	cache, err := scheduler.NewRedis(cfg)
	if err != nil {
		log.Error("failed to initialize redis", "error", err)
		return 1
	}
	defer func() { _ = cache.Close() }()

	release, ok, err := scheduler.NewLease(cache, "", cfg.GetPurgeLockTTL()).Acquire(ctx)
	if err != nil {
		log.Error("failed to acquire purge lease", "error", err)
		return 1
	}
	if !ok {
		log.Warn("a purge is already running; nothing to do")
		return 0
	}
	defer func() { _ = release(context.WithoutCancel(ctx)) }()

	writer := bootstrap.NewKafkaWriter(cfg)
	if writer != nil {
		defer func() { _ = writer.Close() }()
	}

	alerts := bootstrap.NewAlertSink(cfg, writer, log)
	archiver := bootstrap.NewReportArchiver(ctx, cfg, log)
	report := bootstrap.NewPurgeJob(cfg, pool, cache, keycloak.New(cfg), alerts, archiver, log).Run(ctx, "cli")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if !report.Succeeded() {
		return 1
	}
	return 0
}
