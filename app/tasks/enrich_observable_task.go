package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byronlabs/vysion-cti/app/enrichment"
)

type EnrichObservableTask struct {
	Task
	enricher ObservableEnricher
	event    enrichment.Event
	report   enrichment.Report
}

func NewEnrichObservableTask(enricher ObservableEnricher, event enrichment.Event) *EnrichObservableTask {
	return &EnrichObservableTask{
		Task:     NewTask(TaskTypeEnrichObservable, event.TargetID()),
		enricher: enricher,
		event:    event,
	}
}

func (t *EnrichObservableTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	report, err := t.enricher.Enrich(ctx, t.event)
	t.report = report
	if err != nil {
		return fmt.Errorf("failed to enrich observable: %w", err)
	}

	slog.Info("Observable enriched",
		"entity", t.Subject,
		"kind", report.Kind.String(),
		"indicators", report.Indicators,
		"hit_failures", len(report.HitFailures))

	return nil
}

func (t *EnrichObservableTask) Report() enrichment.Report {
	return t.report
}

func (t *EnrichObservableTask) Summary() string {
	return fmt.Sprintf("state=%s hits=%d indicators=%d hit_failures=%d",
		t.report.State, t.report.Hits, t.report.Indicators, len(t.report.HitFailures))
}
