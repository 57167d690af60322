package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"ums_backend/internal/withdraw/purge"
)

const reportPrefix = "withdraw-purge"

type objectWriter interface {
	PutBytes(ctx context.Context, bucket, key, contentType string, content []byte) error
}

// ReportArchiver stores each purge report as a JSON object keyed by date.
type ReportArchiver struct {
	store  objectWriter
	bucket string
}

func NewReportArchiver(store objectWriter, bucket string) *ReportArchiver {
	return &ReportArchiver{store: store, bucket: bucket}
}

// ReportKey is the object key of report, e.g.
// withdraw-purge/2024/01/10/schedule-20240110T030000Z.json.
func ReportKey(report purge.Report) string {
	started := report.StartedAt.UTC()
	return fmt.Sprintf("%s/%s/%s-%s.json",
		reportPrefix,
		started.Format("2006/01/02"),
		report.Trigger,
		started.Format("20060102T150405Z"),
	)
}

func (a *ReportArchiver) Archive(ctx context.Context, report purge.Report) error {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal purge report: %w", err)
	}
	return a.store.PutBytes(ctx, a.bucket, ReportKey(report), "application/json", body)
}

var _ purge.ReportArchiver = (*ReportArchiver)(nil)
