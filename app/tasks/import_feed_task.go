package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byronlabs/vysion-cti/app/ransomware"
)

type ImportFeedTask struct {
	Task
	importer FeedImporter
	report   ransomware.Report
}

func NewImportFeedTask(importer FeedImporter) *ImportFeedTask {
	return &ImportFeedTask{
		Task:     NewTask(TaskTypeImportFeed, ""),
		importer: importer,
	}
}

func (t *ImportFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.importer.Run(ctx)
	t.report = report
	if err != nil {
		return fmt.Errorf("failed to import ransomware feed: %w", err)
	}

	slog.Info("Ransomware feed imported",
		"fetched", report.Fetched,
		"submitted", report.Submitted,
		"duplicates", report.Duplicates,
		"failed", report.Failed)

	return nil
}

func (t *ImportFeedTask) Report() ransomware.Report {
	return t.report
}

func (t *ImportFeedTask) Summary() string {
	return fmt.Sprintf("fetched=%d submitted=%d duplicates=%d failed=%d",
		t.report.Fetched, t.report.Submitted, t.report.Duplicates, t.report.Failed)
}
