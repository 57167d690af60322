package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"ums_backend/internal/withdraw/purge"
	"ums_backend/platform/logger"

	"github.com/hibiken/asynq"
)

type countingJob struct {
	triggers []string
	during   func()
}

func (j *countingJob) Run(_ context.Context, trigger string) purge.Report {
	j.triggers = append(j.triggers, trigger)
	if j.during != nil {
		j.during()
	}
	return purge.Report{Trigger: trigger}
}

type brokenLease struct{}

func (brokenLease) Acquire(context.Context) (func(context.Context) error, bool, error) {
	return nil, false, errors.New("redis down")
}

func purgeTask(t *testing.T, trigger string) *asynq.Task {
	t.Helper()
	task, err := NewWithdrawPurgeTask(WithdrawPurgePayload{Trigger: trigger})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestHandleWithdrawPurgeRunsJobUnderLease(t *testing.T) {
	client, server := newTestRedis(t)
	lease := NewLease(client, "lock:purge", time.Minute)
	job := &countingJob{}
	job.during = func() {
		if !server.Exists("lock:purge") {
			t.Error("expected lease to be held while the job runs")
		}
	}
	w := &Worker{job: job, lease: lease, log: logger.Discard()}

	if err := w.handleWithdrawPurge(context.Background(), purgeTask(t, TriggerForce)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(job.triggers) != 1 || job.triggers[0] != TriggerForce {
		t.Fatalf("expected one forced run, got %v", job.triggers)
	}
	if server.Exists("lock:purge") {
		t.Fatal("expected lease to be released after the run")
	}
}

func TestHandleWithdrawPurgeSkipsWhenLeaseHeld(t *testing.T) {
	client, _ := newTestRedis(t)
	lease := NewLease(client, "lock:purge", time.Minute)
	if _, ok, _ := lease.Acquire(context.Background()); !ok {
		t.Fatal("expected to take the lease")
	}
	job := &countingJob{}
	w := &Worker{job: job, lease: lease, log: logger.Discard()}

	if err := w.handleWithdrawPurge(context.Background(), purgeTask(t, TriggerSchedule)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if len(job.triggers) != 0 {
		t.Fatalf("expected the run to be skipped, got %v", job.triggers)
	}
}

func TestHandleWithdrawPurgeLeaseError(t *testing.T) {
	job := &countingJob{}
	w := &Worker{job: job, lease: brokenLease{}, log: logger.Discard()}

	if err := w.handleWithdrawPurge(context.Background(), purgeTask(t, TriggerSchedule)); err == nil {
		t.Fatal("expected lease error")
	}
	if len(job.triggers) != 0 {
		t.Fatal("expected no run without the lease")
	}
}

func TestHandleWithdrawPurgeRejectsBadPayload(t *testing.T) {
	w := &Worker{job: &countingJob{}, lease: brokenLease{}, log: logger.Discard()}
	err := w.handleWithdrawPurge(context.Background(), asynq.NewTask(TaskWithdrawPurge, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestParsePayloadDefaultsToSchedule(t *testing.T) {
	payload, err := ParseWithdrawPurgePayload(asynq.NewTask(TaskWithdrawPurge, []byte(`{}`)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.Trigger != TriggerSchedule {
		t.Fatalf("expected schedule trigger, got %q", payload.Trigger)
	}
}
