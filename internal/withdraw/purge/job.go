package purge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ums_backend/internal/alert"
	"ums_backend/internal/withdraw/domain"
	"ums_backend/platform/logger"
)

// Report summarizes one scheduled purge.
type Report struct {
	Trigger    string             `json:"trigger"`
	StartedAt  time.Time          `json:"startedAt"`
	FinishedAt time.Time          `json:"finishedAt"`
	ElapsedMs  int64              `json:"elapsedMs"`
	Retrying   domain.BatchResult `json:"retrying"`
	Pending    domain.BatchResult `json:"pending"`
	Error      string             `json:"error,omitempty"`
}

// Succeeded reports whether both passes finished without a store error.
func (r Report) Succeeded() bool {
	return r.Error == ""
}

// Summary is the result line used in alerts.
func (r Report) Summary() string {
	return fmt.Sprintf("RETRYING Scope : %d / %d PENDING Scope : %d / %d",
		r.Retrying.Success, r.Retrying.Total, r.Pending.Success, r.Pending.Total)
}

// ReportArchiver stores finished reports for later inspection.
type ReportArchiver interface {
	Archive(ctx context.Context, report Report) error
}

type passRunner interface {
	Run(ctx context.Context, target domain.PurgeStatus) (domain.BatchResult, error)
}

// Job runs the RETRYING pass and then the PENDING pass, bracketed by
// operator alerts.
type Job struct {
	runner   passRunner
	alerts   alert.Sink
	archiver ReportArchiver
	log      *logger.Logger
	now      func() time.Time
}

func NewJob(runner passRunner, alerts alert.Sink, archiver ReportArchiver, log *logger.Logger) *Job {
	return &Job{runner: runner, alerts: alerts, archiver: archiver, log: log, now: time.Now}
}

// Run never fails; problems end up in the report and the failure alert.
// Alerts and the archive outlive ctx so a cancelled run is still reported.
func (j *Job) Run(ctx context.Context, trigger string) Report {
	report := Report{Trigger: trigger, StartedAt: j.now()}
	reportCtx := context.WithoutCancel(ctx)
	j.log.Info("withdraw purge job started", "trigger", trigger)
	j.notify(reportCtx, alert.TitlePurgeStarted,
		fmt.Sprintf("Keycloak withdraw purge started at %s (trigger: %s).", report.StartedAt.Format(time.RFC3339), trigger))

	var errs []error
	var err error
	if report.Retrying, err = j.runner.Run(ctx, domain.PurgeStatusRetrying); err != nil {
		errs = append(errs, fmt.Errorf("RETRYING pass: %w", err))
	}
	if report.Pending, err = j.runner.Run(ctx, domain.PurgeStatusPending); err != nil {
		errs = append(errs, fmt.Errorf("PENDING pass: %w", err))
	}

	report.FinishedAt = j.now()
	report.ElapsedMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()

	if joined := errors.Join(errs...); joined != nil {
		report.Error = joined.Error()
		j.log.Error("withdraw purge job failed", "error", joined, "summary", report.Summary())
		j.notify(reportCtx, alert.TitlePurgeFailed,
			fmt.Sprintf("Keycloak withdraw purge failed.\nError: %s\nResult: %s", report.Error, report.Summary()))
	} else {
		j.log.Info("withdraw purge job finished", "elapsed_ms", report.ElapsedMs, "summary", report.Summary())
		j.notify(reportCtx, alert.TitlePurgeCompleted,
			fmt.Sprintf("Keycloak withdraw purge completed at %s. Elapsed: %d ms\nResult: %s",
				report.FinishedAt.Format(time.RFC3339), report.ElapsedMs, report.Summary()))
	}

	if j.archiver != nil {
		if err := j.archiver.Archive(reportCtx, report); err != nil {
			j.log.Warn("archive purge report failed", "error", err)
		}
	}
	return report
}

func (j *Job) notify(ctx context.Context, title, message string) {
	if err := j.alerts.Notify(ctx, title, message); err != nil {
		j.log.Warn("purge alert failed", "title", title, "error", err)
	}
}
