package ransomware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/byronlabs/vysion-cti/app/failure"
	"github.com/byronlabs/vysion-cti/app/metrics"
	"github.com/byronlabs/vysion-cti/app/stix"
	"github.com/byronlabs/vysion-cti/app/vysion"
)

type FeedFetcher interface {
	FetchRansomwareFeed(ctx context.Context) ([]vysion.FeedRecord, error)
}

type BundleSender interface {
	SendBundle(ctx context.Context, bundle *stix.Bundle) error
}

// Ledger remembers which records were already submitted.
type Ledger interface {
	IsSubmitted(key string) (bool, error)
	MarkSubmitted(key, group, company string) error
}

type Importer struct {
	fetcher FeedFetcher
	sender  BundleSender
	ledger  Ledger
	now     func() time.Time
}

// NewImporter wires the importer. A nil ledger disables duplicate detection.
func NewImporter(fetcher FeedFetcher, sender BundleSender, ledger Ledger) *Importer {
	return &Importer{
		fetcher: fetcher,
		sender:  sender,
		ledger:  ledger,
		now:     time.Now,
	}
}

type Report struct {
	Fetched    int
	Submitted  int
	Duplicates int
	Failed     int
	Failures   []error
}

func (r *Report) fail(err error) {
	r.Failed++
	r.Failures = append(r.Failures, err)
}

// Run performs one import cycle. A fetch failure aborts the cycle and is
// returned; failures of single records are collected in the report.
func (i *Importer) Run(ctx context.Context) (Report, error) {
	var report Report

	records, err := i.fetcher.FetchRansomwareFeed(ctx)
	if err != nil {
		slog.Error("Error while calling Vysion API", "operation", "fetch_feed", "error", err)
		return report, fmt.Errorf("failed to fetch ransomware feed: %w", err)
	}
	report.Fetched = len(records)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := i.process(ctx, record)
		metrics.FeedRecords.WithLabelValues(outcome).Inc()

		switch outcome {
		case "duplicate":
			report.Duplicates++
		case "submitted":
			report.Submitted++
		default:
			slog.Error("Error while processing event",
				"group", record.RansomwareGroup,
				"company", record.Company,
				"kind", string(failure.KindOf(err)),
				"error", err)
			report.fail(err)
		}
	}

	return report, nil
}

func (i *Importer) process(ctx context.Context, record vysion.FeedRecord) (string, error) {
	key := RecordKey(record)

	if i.ledger != nil {
		seen, err := i.ledger.IsSubmitted(key)
		if err != nil {
			slog.Warn("Ledger lookup failed, submitting anyway", "company", record.Company, "error", err)
		} else if seen {
			slog.Debug("Record already submitted", "group", record.RansomwareGroup, "company", record.Company)
			return "duplicate", nil
		}
	}

	bundle, err := Transform(record, i.now())
	if err != nil {
		return "invalid", err
	}

	if err := i.sender.SendBundle(ctx, bundle); err != nil {
		metrics.BundlesSubmitted.WithLabelValues("import", "failed").Inc()
		return "rejected", err
	}
	metrics.BundlesSubmitted.WithLabelValues("import", "ok").Inc()

	if i.ledger != nil {
		if err := i.ledger.MarkSubmitted(key, record.RansomwareGroup, record.Company); err != nil {
			slog.Warn("Failed to record submitted record", "company", record.Company, "error", err)
		}
	}

	slog.Debug("Record submitted", "group", record.RansomwareGroup, "company", record.Company, "bundle", bundle.ID)
	return "submitted", nil
}
