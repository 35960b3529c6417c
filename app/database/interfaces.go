package database

type LedgerRepository interface {
	IsSubmitted(key string) (bool, error)
	MarkSubmitted(key, group, company string) error
	Count() (int, error)
}

type RunRepository interface {
	RecordRun(run Run) (int64, error)
	RecentRuns(limit int) ([]Run, error)
	CountByStatus() (map[RunStatus]int, error)
}
