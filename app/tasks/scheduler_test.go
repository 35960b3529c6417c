package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/byronlabs/vysion-cti/app/database"
	"github.com/byronlabs/vysion-cti/app/enrichment"
	"github.com/byronlabs/vysion-cti/app/ransomware"
)

type mockImporter struct {
	report ransomware.Report
	err    error
	calls  atomic.Int32
	done   chan struct{}
}

func newMockImporter() *mockImporter {
	return &mockImporter{done: make(chan struct{}, 10)}
}

func (m *mockImporter) Run(ctx context.Context) (ransomware.Report, error) {
	m.calls.Add(1)
	defer func() { m.done <- struct{}{} }()
	return m.report, m.err
}

type mockRunRepo struct {
	mu   sync.Mutex
	runs []database.Run
}

func (m *mockRunRepo) RecordRun(run database.Run) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func (m *mockRunRepo) RecentRuns(limit int) ([]database.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.Run(nil), m.runs...), nil
}

func (m *mockRunRepo) CountByStatus() (map[database.RunStatus]int, error) {
	return nil, nil
}

func (m *mockRunRepo) snapshot() []database.Run {
	runs, _ := m.RecentRuns(0)
	return runs
}

// blockingTask records how many tasks overlap while it runs.
type blockingTask struct {
	Task
	active  *atomic.Int32
	maxSeen *atomic.Int32
	done    chan struct{}
}

func (b *blockingTask) Execute(ctx context.Context) error {
	n := b.active.Add(1)
	for {
		seen := b.maxSeen.Load()
		if n <= seen || b.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	b.active.Add(-1)
	b.done <- struct{}{}
	return nil
}

func (b *blockingTask) Summary() string { return "" }

type mockEnricher struct {
	err error
}

func (m *mockEnricher) Enrich(ctx context.Context, event enrichment.Event) (enrichment.Report, error) {
	if m.err != nil {
		return enrichment.Report{State: enrichment.Failed}, m.err
	}
	return enrichment.Report{State: enrichment.Emitted, Hits: 3, Indicators: 2}, nil
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for task")
	}
}

func waitForRuns(t *testing.T, repo *mockRunRepo, n int) []database.Run {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runs := repo.snapshot(); len(runs) >= n {
			return runs
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d runs to be recorded", n)
	return nil
}

func TestSchedulerImportsAtStartup(t *testing.T) {
	importer := newMockImporter()
	importer.report = ransomware.Report{Fetched: 2, Submitted: 2}
	runs := &mockRunRepo{}

	s := NewScheduler(importer, runs, time.Hour)
	s.Start()
	defer s.Stop()

	waitFor(t, importer.done)
	recorded := waitForRuns(t, runs, 1)

	if recorded[0].TaskType != string(TaskTypeImportFeed) {
		t.Errorf("Expected import_feed run, got %s", recorded[0].TaskType)
	}
	if recorded[0].Status != database.RunSucceeded {
		t.Errorf("Expected succeeded, got %s", recorded[0].Status)
	}
	if recorded[0].Summary != "fetched=2 submitted=2 duplicates=0 failed=0" {
		t.Errorf("Unexpected summary %q", recorded[0].Summary)
	}
}

func TestSchedulerRecordsFailedRun(t *testing.T) {
	importer := newMockImporter()
	importer.err = errors.New("vysion unavailable")
	runs := &mockRunRepo{}

	s := NewScheduler(importer, runs, time.Hour)
	s.Start()
	defer s.Stop()

	waitFor(t, importer.done)
	recorded := waitForRuns(t, runs, 1)

	if recorded[0].Status != database.RunFailed {
		t.Errorf("Expected failed, got %s", recorded[0].Status)
	}
	if recorded[0].Error == "" {
		t.Error("Expected error to be recorded")
	}
	if importer.calls.Load() != 1 {
		t.Errorf("Expected no retry, got %d calls", importer.calls.Load())
	}
}

func TestSchedulerWithoutImporter(t *testing.T) {
	runs := &mockRunRepo{}
	s := NewScheduler(nil, runs, time.Hour)
	s.Start()
	defer s.Stop()

	task := NewEnrichObservableTask(&mockEnricher{}, enrichment.Event{EntityID: "obs-1"})
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	recorded := waitForRuns(t, runs, 1)
	if recorded[0].TaskType != string(TaskTypeEnrichObservable) {
		t.Errorf("Expected enrich_observable run, got %s", recorded[0].TaskType)
	}
	if recorded[0].Subject != "obs-1" {
		t.Errorf("Expected subject obs-1, got %s", recorded[0].Subject)
	}
	if recorded[0].Summary != "state=emitted hits=3 indicators=2 hit_failures=0" {
		t.Errorf("Unexpected summary %q", recorded[0].Summary)
	}
}

func TestSchedulerRunsTasksSerially(t *testing.T) {
	s := NewScheduler(nil, nil, 0)
	s.Start()
	defer s.Stop()

	var active, maxSeen atomic.Int32
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		task := &blockingTask{Task: NewTask(TaskTypeEnrichObservable, ""), active: &active, maxSeen: &maxSeen, done: done}
		if err := s.EnqueueTask(task); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		waitFor(t, done)
	}

	if maxSeen.Load() != 1 {
		t.Errorf("Expected at most 1 concurrent task, got %d", maxSeen.Load())
	}
}

func TestEnqueueTaskQueueFull(t *testing.T) {
	s := NewScheduler(nil, nil, 0)
	s.taskQueue = make(chan TaskInterface, 1)

	if err := s.EnqueueTask(NewImportFeedTask(newMockImporter())); err != nil {
		t.Fatalf("Expected first enqueue to succeed, got %v", err)
	}
	err := s.EnqueueTask(NewImportFeedTask(newMockImporter()))
	if err == nil || err.Error() != "task queue is full" {
		t.Errorf("Expected queue full error, got %v", err)
	}
}

func TestEnqueueTaskAfterStop(t *testing.T) {
	s := NewScheduler(nil, nil, 0)
	s.Start()
	s.Stop()

	if err := s.EnqueueTask(NewImportFeedTask(newMockImporter())); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestEnrichObservableTaskError(t *testing.T) {
	task := NewEnrichObservableTask(&mockEnricher{err: errors.New("lookup failure")}, enrichment.Event{EntityID: "obs-2"})
	if err := task.Execute(context.Background()); err == nil {
		t.Error("Expected error, got nil")
	}
	if task.Report().State != enrichment.Failed {
		t.Errorf("Expected failed state, got %s", task.Report().State)
	}
}
