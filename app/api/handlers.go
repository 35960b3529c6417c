package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/byronlabs/vysion-cti/app/database"
	"github.com/byronlabs/vysion-cti/app/enrichment"
	"github.com/byronlabs/vysion-cti/app/tasks"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

func NewHandler(scheduler tasks.TaskSchedulerInterface, importer tasks.FeedImporter,
	enricher tasks.ObservableEnricher, ledger database.LedgerRepository,
	runs database.RunRepository, version string) *Handler {
	return &Handler{
		scheduler: scheduler,
		importer:  importer,
		enricher:  enricher,
		ledger:    ledger,
		runs:      runs,
		version:   version,
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
		"connectors": gin.H{
			"import":     h.importer != nil,
			"enrichment": h.enricher != nil,
		},
	})
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{
		"queue_length": h.scheduler.QueueLength(),
	}

	if h.ledger != nil {
		if count, err := h.ledger.Count(); err == nil {
			stats["submissions"] = count
		} else {
			slog.Error("Database error", "operation", "count_submissions", "error", err)
		}
	}

	if h.runs != nil {
		if counts, err := h.runs.CountByStatus(); err == nil {
			stats["runs"] = counts
		} else {
			slog.Error("Database error", "operation", "count_runs", "error", err)
		}
	}

	c.JSON(http.StatusOK, stats)
}

// Enrich accepts an enrichment event and queues it for the worker.
func (h *Handler) Enrich(c *gin.Context) {
	if h.enricher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Enrichment connector disabled"})
		return
	}

	var event enrichment.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid enrichment event",
			"details": err.Error(),
		})
		return
	}

	if event.TargetID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing entity_id"})
		return
	}

	task := tasks.NewEnrichObservableTask(h.enricher, event)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing enrichment task", "entity", event.TargetID(), "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue enrichment task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task": taskResponse{ID: task.ID, Type: string(task.Type), Subject: task.Subject},
	})
}

func (h *Handler) Import(c *gin.Context) {
	if h.importer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Import connector disabled"})
		return
	}

	task := tasks.NewImportFeedTask(h.importer)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing import task", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Failed to enqueue import task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"task": taskResponse{ID: task.ID, Type: string(task.Type)},
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run history disabled"})
		return
	}

	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.runs.RecentRuns(limit)
	if err != nil {
		slog.Error("Database error", "operation", "recent_runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		items = append(items, runResponse{
			ID:         run.ID,
			TaskID:     run.TaskID,
			Type:       run.TaskType,
			Subject:    run.Subject,
			Status:     string(run.Status),
			Summary:    run.Summary,
			Error:      run.Error,
			StartedAt:  run.StartedAt.In(time.Local).Format(time.RFC3339),
			DurationMs: run.Duration.Milliseconds(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  items,
		"total": len(items),
	})
}
