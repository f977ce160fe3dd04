package preprocess

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/models"
)

// Logger is the logging surface the pipeline needs.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

// Ledger records run outcomes. It may be nil.
type Ledger interface {
	StartRun(root string) (string, error)
	RecordOutcome(runID string, o models.Outcome) error
	FinishRun(runID string, report *models.Report, runErr error) error
}

// Pipeline preprocesses every recording under Root.
type Pipeline struct {
	Root         string
	IsoChannel   string
	SmoothCutoff float64
	Log          Logger
	Ledger       Ledger
}

// ProcessRecording preprocesses a single recording. A missing rejections
// file yields a skipped outcome; any other problem is returned as an error.
func (p *Pipeline) ProcessRecording(key models.RecordingKey) (models.Outcome, error) {
	out := models.Outcome{Key: key}

	intervals, ok, err := fp.LoadRejections(p.Root, key)
	if err != nil {
		return p.fail(out, fmt.Errorf("loading rejections: %w", err))
	}
	if !ok {
		p.Log.Infof("Recording for %s has no rejections file, skipping.", key)
		out.Status = models.StatusSkipped
		out.Detail = "no rejections file"
		return out, nil
	}

	rec, err := fp.LoadSignal(p.Root, key, p.IsoChannel)
	if err != nil {
		return p.fail(out, fmt.Errorf("loading signal: %w", err))
	}

	dff := Transform(rec, intervals, p.SmoothCutoff)
	art, err := WriteArtifact(p.Root, key, dff, rec.Attrs)
	if err != nil {
		return p.fail(out, fmt.Errorf("writing artifact: %w", err))
	}

	p.Log.Debugf("Wrote %d rows to %s", art.Rows, art.DataPath)
	out.Status = models.StatusWritten
	out.Rows = art.Rows
	return out, nil
}

func (p *Pipeline) fail(out models.Outcome, err error) (models.Outcome, error) {
	out.Status = models.StatusFailed
	out.Detail = err.Error()
	return out, err
}

// Run walks the dataset sequentially. It stops at the first hard error,
// leaving the artifacts of earlier recordings in place. ctx is only
// consulted between recordings.
func (p *Pipeline) Run(ctx context.Context) (*models.Report, error) {
	keys, err := bids.Recordings(p.Root)
	if err != nil {
		return nil, fmt.Errorf("locating recordings: %w", err)
	}
	p.Log.Infof("Found %d recordings under %s", len(keys), p.Root)
	return p.RunKeys(ctx, keys)
}

// RunKeys processes keys in order as one ledgered run.
func (p *Pipeline) RunKeys(ctx context.Context, keys []models.RecordingKey) (report *models.Report, err error) {
	report = &models.Report{}
	if p.Ledger != nil {
		if report.RunID, err = p.Ledger.StartRun(p.Root); err != nil {
			return nil, fmt.Errorf("starting run: %w", err)
		}
		defer func() {
			if ferr := p.Ledger.FinishRun(report.RunID, report, err); ferr != nil && err == nil {
				err = fmt.Errorf("finishing run: %w", ferr)
			}
		}()
	} else {
		report.RunID = uuid.New().String()
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		out, perr := p.ProcessRecording(key)
		report.Add(out)
		if p.Ledger != nil {
			if lerr := p.Ledger.RecordOutcome(report.RunID, out); lerr != nil {
				return report, fmt.Errorf("recording outcome: %w", lerr)
			}
		}
		if perr != nil {
			p.Log.Errorf("Preprocessing %s failed: %v", key.Stem(), perr)
			return report, fmt.Errorf("%s: %w", key.Stem(), perr)
		}
	}

	p.Log.Infof("Preprocessed %d of %d recordings (%d skipped)",
		report.Written, len(keys), report.Skipped)
	return report, nil
}
