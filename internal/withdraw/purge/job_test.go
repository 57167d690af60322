package purge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ums_backend/internal/alert"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/logger"
)

type stubPasses struct {
	results map[domain.PurgeStatus]domain.BatchResult
	errs    map[domain.PurgeStatus]error
	order   []domain.PurgeStatus
}

func (s *stubPasses) Run(_ context.Context, target domain.PurgeStatus) (domain.BatchResult, error) {
	s.order = append(s.order, target)
	return s.results[target], s.errs[target]
}

type memArchiver struct {
	reports []Report
}

func (m *memArchiver) Archive(_ context.Context, r Report) error {
	m.reports = append(m.reports, r)
	return nil
}

func newTestJob(passes *stubPasses, alerts *fakeAlerts, archiver ReportArchiver) *Job {
	j := NewJob(passes, alerts, archiver, logger.Discard())
	ticks := []time.Time{runAt, runAt.Add(1500 * time.Millisecond)}
	j.now = func() time.Time {
		t := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return t
	}
	return j
}

func TestJobRunsRetryingThenPending(t *testing.T) {
	passes := &stubPasses{results: map[domain.PurgeStatus]domain.BatchResult{
		domain.PurgeStatusRetrying: {Target: domain.PurgeStatusRetrying, Total: 2, Success: 1, Failed: 1},
		domain.PurgeStatusPending:  {Target: domain.PurgeStatusPending, Total: 4, Success: 4},
	}}
	alerts := &fakeAlerts{}
	archiver := &memArchiver{}

	report := newTestJob(passes, alerts, archiver).Run(context.Background(), "schedule")

	if len(passes.order) != 2 || passes.order[0] != domain.PurgeStatusRetrying || passes.order[1] != domain.PurgeStatusPending {
		t.Fatalf("unexpected pass order %v", passes.order)
	}
	if !report.Succeeded() || report.ElapsedMs != 1500 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(alerts.sent) != 2 || alerts.sent[0].title != alert.TitlePurgeStarted || alerts.sent[1].title != alert.TitlePurgeCompleted {
		t.Fatalf("expected started and completed alerts, got %+v", alerts.sent)
	}
	msg := alerts.sent[1].message
	if !strings.Contains(msg, "RETRYING Scope : 1 / 2 PENDING Scope : 4 / 4") || !strings.Contains(msg, "1500 ms") {
		t.Fatalf("unexpected completed message %q", msg)
	}
	if len(archiver.reports) != 1 {
		t.Fatal("expected report to be archived")
	}
}

func TestJobRunsPendingEvenWhenRetryingFails(t *testing.T) {
	passes := &stubPasses{
		results: map[domain.PurgeStatus]domain.BatchResult{
			domain.PurgeStatusPending: {Target: domain.PurgeStatusPending, Total: 1, Success: 1},
		},
		errs: map[domain.PurgeStatus]error{domain.PurgeStatusRetrying: errors.New("count failed")},
	}
	alerts := &fakeAlerts{}

	report := newTestJob(passes, alerts, nil).Run(context.Background(), "force")

	if len(passes.order) != 2 {
		t.Fatalf("expected both passes to run, got %v", passes.order)
	}
	if report.Succeeded() || !strings.Contains(report.Error, "count failed") {
		t.Fatalf("expected failure in report, got %+v", report)
	}
	last := alerts.sent[len(alerts.sent)-1]
	if last.title != alert.TitlePurgeFailed || !strings.Contains(last.message, "count failed") {
		t.Fatalf("expected failed alert with detail, got %+v", last)
	}
}

func TestJobIgnoresAlertErrors(t *testing.T) {
	passes := &stubPasses{}
	alerts := &fakeAlerts{err: errors.New("mail down")}

	report := newTestJob(passes, alerts, nil).Run(context.Background(), "schedule")
	if !report.Succeeded() {
		t.Fatalf("expected alert failures not to fail the job, got %+v", report)
	}
	if len(alerts.sent) != 2 {
		t.Fatalf("expected both alerts attempted, got %d", len(alerts.sent))
	}
}

// cancellingPasses cancels the run from inside the first pass.
type cancellingPasses struct {
	cancel context.CancelFunc
}

func (c *cancellingPasses) Run(ctx context.Context, _ domain.PurgeStatus) (domain.BatchResult, error) {
	c.cancel()
	return domain.BatchResult{}, ctx.Err()
}

// liveSink refuses delivery on a dead context, like the Kafka and SMTP sinks.
type liveSink struct {
	titles []string
}

func (s *liveSink) Notify(ctx context.Context, title, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.titles = append(s.titles, title)
	return nil
}

type liveArchiver struct {
	archived int
}

func (a *liveArchiver) Archive(ctx context.Context, _ Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.archived++
	return nil
}

func TestJobReportsCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := &liveSink{}
	archiver := &liveArchiver{}
	report := NewJob(&cancellingPasses{cancel: cancel}, sink, archiver, logger.Discard()).Run(ctx, "force")

	if report.Succeeded() || !strings.Contains(report.Error, context.Canceled.Error()) {
		t.Fatalf("expected cancellation in report, got %q", report.Error)
	}
	if len(sink.titles) != 2 || sink.titles[1] != alert.TitlePurgeFailed {
		t.Fatalf("expected started and failed alerts, got %v", sink.titles)
	}
	if archiver.archived != 1 {
		t.Fatal("expected cancelled run to be archived")
	}
}
