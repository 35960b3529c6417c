package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	VysionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vysion_api_requests_total",
			Help: "Requests sent to the Vysion API",
		},
		[]string{"endpoint", "status"},
	)

	FeedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vysion_feed_records_total",
			Help: "Ransomware feed records by outcome",
		},
		[]string{"outcome"},
	)

	Enrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vysion_enrichments_total",
			Help: "Enrichment requests by final state",
		},
		[]string{"state"},
	)

	EnrichmentHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vysion_enrichment_hits_total",
			Help: "Lookup hits by outcome",
		},
		[]string{"outcome"},
	)

	BundlesSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vysion_bundles_submitted_total",
			Help: "Bundles handed to the platform",
		},
		[]string{"connector", "status"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vysion_task_queue_depth",
			Help: "Tasks waiting for the worker",
		},
	)
)
