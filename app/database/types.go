package database

import (
	"time"
)

type Submission struct {
	Key             string
	RansomwareGroup string
	Company         string
	SubmittedAt     time.Time
}

type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one finished task as kept in the run history.
type Run struct {
	ID        int64
	TaskID    string
	TaskType  string
	Subject   string // observable id for enrichments, empty for imports
	Status    RunStatus
	Summary   string
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}
