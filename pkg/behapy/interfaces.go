package behapy

import (
	"context"

	"github.com/himanishpuri/behapy/pkg/models"
)

type Service interface {
	Preprocess(ctx context.Context) (*models.Report, error)
	PreprocessRecording(ctx context.Context, key models.RecordingKey) (*models.Report, error)
	Recordings() ([]models.RecordingKey, error)
	LoadTrace(key models.RecordingKey) (*Trace, error)
	Rejections(key models.RecordingKey) (models.Intervals, bool, error)
	SaveRejections(key models.RecordingKey, intervals models.Intervals) error
	ListRuns(limit int) ([]models.RunSummary, error)
	RunOutcomes(runID string) ([]models.Outcome, error)
	DeleteRun(runID string) error
	Root() string
	Close() error
}

// Ledger persists preprocessing runs.
type Ledger interface {
	StartRun(root string) (string, error)
	RecordOutcome(runID string, o models.Outcome) error
	FinishRun(runID string, report *models.Report, runErr error) error
	ListRuns(limit int) ([]models.RunSummary, error)
	GetRunOutcomes(runID string) ([]models.Outcome, error)
	DeleteRun(runID string) error
	Close() error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
