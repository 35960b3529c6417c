package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/byronlabs/vysion-cti/app/database"
	"github.com/byronlabs/vysion-cti/app/metrics"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize   = 100
	taskTimeout = 30 * time.Minute
)

// Scheduler runs tasks one at a time on a single worker so that a feed cycle
// or an enrichment request always finishes before the next one starts.
type Scheduler struct {
	importer  FeedImporter
	runRepo   database.RunRepository
	interval  time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

// NewScheduler creates a scheduler. A nil importer or a non-positive interval
// disables periodic imports; a nil runRepo disables run history.
func NewScheduler(importer FeedImporter, runRepo database.RunRepository, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		importer:  importer,
		runRepo:   runRepo,
		interval:  interval,
		ctx:       ctx,
		cancel:    cancel,
		taskQueue: make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.worker()

	if s.importer == nil || s.interval <= 0 {
		slog.Debug("Periodic import disabled")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueImport()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueImport()
			}
		}
	}()
}

// Stop cancels the running task and waits for the worker. Queued tasks are dropped.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		metrics.QueueDepth.Set(float64(len(s.taskQueue)))
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) QueueLength() int {
	return len(s.taskQueue)
}

func (s *Scheduler) enqueueImport() {
	task := NewImportFeedTask(s.importer)
	if err := s.EnqueueTask(task); err != nil {
		slog.Warn("Failed to enqueue ImportFeedTask", "id", task.GetID(), "error", err)
	}
}

func (s *Scheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			metrics.QueueDepth.Set(float64(len(s.taskQueue)))
			s.executeTask(task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	duration := task.GetDuration()

	run := database.Run{
		TaskID:    task.GetID(),
		TaskType:  string(task.GetType()),
		Subject:   task.GetSubject(),
		Status:    database.RunSucceeded,
		Summary:   task.Summary(),
		StartedAt: task.GetStartedAt(),
		Duration:  duration,
	}

	if err != nil {
		run.Status = database.RunFailed
		run.Error = err.Error()
		slog.Error("Task execution failed", "type", string(task.GetType()), "id", task.GetID(), "subject", task.GetSubject(), "error", err)
	} else {
		slog.Info("Task completed", "type", string(task.GetType()), "id", task.GetID(), "duration", duration.String())
	}

	if s.runRepo == nil {
		return
	}
	if _, err := s.runRepo.RecordRun(run); err != nil {
		slog.Warn("Failed to record run", "type", string(task.GetType()), "id", task.GetID(), "error", err)
	}
}
