package tasks

import (
	"context"

	"github.com/byronlabs/vysion-cti/app/enrichment"
	"github.com/byronlabs/vysion-cti/app/ransomware"
)

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the HTTP handlers to hand work to the
// single worker.
//
//	scheduler := NewScheduler(importer, runRepo, interval)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewEnrichObservableTask(enricher, event))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	QueueLength() int
}

type FeedImporter interface {
	Run(ctx context.Context) (ransomware.Report, error)
}

type ObservableEnricher interface {
	Enrich(ctx context.Context, event enrichment.Event) (enrichment.Report, error)
}
