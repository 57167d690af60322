package scheduler

import (
	"context"
	"testing"
	"time"

	"ums_backend/platform/apperr"
	"ums_backend/platform/logger"

	"github.com/hibiken/asynq"
)

func TestRedisClientOptAppliesInsecureTLS(t *testing.T) {
	opt, err := redisClientOpt("rediss://:secret@cache:6380/2", true)
	if err != nil {
		t.Fatalf("redisClientOpt returned error: %v", err)
	}
	if opt.Addr != "cache:6380" || opt.Password != "secret" || opt.DB != 2 {
		t.Fatalf("unexpected options %+v", opt)
	}
	if opt.TLSConfig == nil || !opt.TLSConfig.InsecureSkipVerify {
		t.Fatal("expected insecure TLS config")
	}
}

func TestRedisClientOptPlain(t *testing.T) {
	opt, err := redisClientOpt("redis://localhost:6379/0", false)
	if err != nil {
		t.Fatalf("redisClientOpt returned error: %v", err)
	}
	if opt.TLSConfig != nil {
		t.Fatal("expected no TLS for redis://")
	}
}

func TestEnqueueWithoutClientIsUnavailable(t *testing.T) {
	var c *Client
	if _, err := c.EnqueueForcePurge(context.Background(), "admin"); !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestForcePurgeIsUniqueAcrossRequesters(t *testing.T) {
	_, server := newTestRedis(t)
	c := &Client{
		client:    asynq.NewClient(asynq.RedisClientOpt{Addr: server.Addr()}),
		queue:     "default",
		uniqueTTL: time.Minute,
		log:       logger.Discard(),
	}
	t.Cleanup(func() { _ = c.Close() })

	if _, err := c.EnqueueForcePurge(context.Background(), "admin-1"); err != nil {
		t.Fatalf("first enqueue returned error: %v", err)
	}
	if _, err := c.EnqueueForcePurge(context.Background(), "admin-2"); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected Conflict for a second requester, got %v", err)
	}
}
