package behapy

import (
	"github.com/himanishpuri/behapy/internal/storage"
	"github.com/himanishpuri/behapy/pkg/models"
)

// storageAdapter adapts the storage.DBClient to implement the Ledger interface.
type storageAdapter struct {
	db *storage.DBClient
}

// NewSQLiteLedger opens (or creates) the run ledger at dbPath.
func NewSQLiteLedger(dbPath string) (Ledger, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return &storageAdapter{db: db}, nil
}

func (s *storageAdapter) StartRun(root string) (string, error) {
	return s.db.StartRun(root)
}

func (s *storageAdapter) RecordOutcome(runID string, o models.Outcome) error {
	return s.db.RecordOutcome(runID, o)
}

func (s *storageAdapter) FinishRun(runID string, report *models.Report, runErr error) error {
	return s.db.FinishRun(runID, report, runErr)
}

func (s *storageAdapter) ListRuns(limit int) ([]models.RunSummary, error) {
	return s.db.ListRuns(limit)
}

func (s *storageAdapter) GetRunOutcomes(runID string) ([]models.Outcome, error) {
	return s.db.GetRunOutcomes(runID)
}

func (s *storageAdapter) DeleteRun(runID string) error {
	return s.db.DeleteRun(runID)
}

func (s *storageAdapter) Close() error {
	return s.db.Close()
}
