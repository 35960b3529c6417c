package database

import (
	"fmt"
	"time"
)

type runRepository struct {
	db *DB
}

func NewRunRepository(db *DB) RunRepository {
	return &runRepository{db: db}
}

// RecordRun stores a finished task and returns its row id
func (r *runRepository) RecordRun(run Run) (int64, error) {
	res, err := r.db.Exec(`
		INSERT INTO runs (task_id, task_type, subject, status, summary, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.TaskID, run.TaskType, run.Subject, string(run.Status), run.Summary, run.Error,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to record run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first
func (r *runRepository) RecentRuns(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, task_id, task_type, subject, status, summary, error, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			status     string
			startedAt  string
			durationMs int64
		)
		err := rows.Scan(&run.ID, &run.TaskID, &run.TaskType, &run.Subject, &status,
			&run.Summary, &run.Error, &startedAt, &durationMs)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}

		run.Status = RunStatus(status)
		run.Duration = time.Duration(durationMs) * time.Millisecond
		run.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse run start time: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func (r *runRepository) CountByStatus() (map[RunStatus]int, error) {
	rows, err := r.db.Query(`SELECT status, COUNT(*) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}
	defer rows.Close()

	counts := make(map[RunStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run count: %w", err)
		}
		counts[RunStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run counts: %w", err)
	}

	return counts, nil
}
