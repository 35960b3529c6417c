package database

import (
	"fmt"
	"time"
)

// Fixed width so that stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ledgerRepository persists the keys of feed records already handed to the platform
type ledgerRepository struct {
	db  *DB
	now func() time.Time
}

func NewLedgerRepository(db *DB) LedgerRepository {
	return &ledgerRepository{db: db, now: time.Now}
}

func (r *ledgerRepository) IsSubmitted(key string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM submissions WHERE record_key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}
	return exists, nil
}

// MarkSubmitted records key; marking a key twice keeps the first entry
func (r *ledgerRepository) MarkSubmitted(key, group, company string) error {
	_, err := r.db.Exec(`
		INSERT INTO submissions (record_key, ransomware_group, company, submitted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (record_key) DO NOTHING
	`, key, group, company, r.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to mark submission: %w", err)
	}
	return nil
}

func (r *ledgerRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM submissions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get submission count: %w", err)
	}
	return count, nil
}
