package api

import (
	"github.com/byronlabs/vysion-cti/app/database"
	"github.com/byronlabs/vysion-cti/app/tasks"
)

// Handler serves the HTTP surface. importer, enricher, ledger and runs may be
// nil when the corresponding connector or store is disabled.
type Handler struct {
	scheduler tasks.TaskSchedulerInterface
	importer  tasks.FeedImporter
	enricher  tasks.ObservableEnricher
	ledger    database.LedgerRepository
	runs      database.RunRepository
	version   string
}

type taskResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Subject string `json:"subject,omitempty"`
}

type runResponse struct {
	ID         int64  `json:"id"`
	TaskID     string `json:"task_id"`
	Type       string `json:"type"`
	Subject    string `json:"subject,omitempty"`
	Status     string `json:"status"`
	Summary    string `json:"summary,omitempty"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	DurationMs int64  `json:"duration_ms"`
}
