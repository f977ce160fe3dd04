// Package behapy is the public entry point to the photometry tooling: it
// ties dataset discovery, curation and preprocessing to the run ledger.
package behapy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/internal/preprocess"
	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/models"
)

var (
	ErrNoLedger         = errors.New("run ledger disabled")
	ErrUnknownRecording = errors.New("recording not found")
)

// behapyService is the default implementation of the Service interface.
type behapyService struct {
	ledger Ledger
	log    Logger
	config *Config
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	if cfg.IsoChannel == "" {
		cfg.IsoChannel = fp.DefaultIsoChannel
	}
	if cfg.SmoothCutoff <= 0 {
		return nil, fmt.Errorf("smoothing cutoff must be positive, got %g", cfg.SmoothCutoff)
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	cfg.Root = root

	ledger := cfg.Ledger
	if ledger == nil && !cfg.DisableLedger {
		path := cfg.DBPath
		if path == "" {
			path = bids.LedgerPath(cfg.Root)
		}
		ledger, err = NewSQLiteLedger(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
	}

	return &behapyService{
		ledger: ledger,
		log:    cfg.Logger,
		config: cfg,
	}, nil
}

func (s *behapyService) pipeline() *preprocess.Pipeline {
	p := &preprocess.Pipeline{
		Root:         s.config.Root,
		IsoChannel:   s.config.IsoChannel,
		SmoothCutoff: s.config.SmoothCutoff,
		Log:          s.log,
	}
	if s.ledger != nil {
		p.Ledger = s.ledger
	}
	return p
}

// Preprocess runs the pipeline over every recording in the dataset.
func (s *behapyService) Preprocess(ctx context.Context) (*models.Report, error) {
	s.log.Infof("Preprocessing dataset %s", s.config.Root)
	return s.pipeline().Run(ctx)
}

// PreprocessRecording runs the pipeline for a single recording.
func (s *behapyService) PreprocessRecording(ctx context.Context, key models.RecordingKey) (*models.Report, error) {
	if err := s.checkKnown(key); err != nil {
		return nil, err
	}
	return s.pipeline().RunKeys(ctx, []models.RecordingKey{key})
}

func (s *behapyService) checkKnown(key models.RecordingKey) error {
	files, err := bids.ChannelsFor(s.config.Root, key)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("%s: %w", key.Stem(), ErrUnknownRecording)
	}
	return nil
}

func (s *behapyService) Recordings() ([]models.RecordingKey, error) {
	return bids.Recordings(s.config.Root)
}

// LoadTrace reads the raw signal and isosbestic channels of key.
func (s *behapyService) LoadTrace(key models.RecordingKey) (*Trace, error) {
	if err := s.checkKnown(key); err != nil {
		return nil, err
	}
	rec, err := fp.LoadSignal(s.config.Root, key, s.config.IsoChannel)
	if err != nil {
		return nil, err
	}
	return &Trace{
		Key:       key,
		Channel:   rec.Attrs.Channel,
		Fs:        rec.Attrs.Fs,
		StartTime: rec.Attrs.StartTime,
		Time:      rec.Time,
		Signal:    rec.Signal(),
		Iso:       rec.Channels[s.config.IsoChannel],
	}, nil
}

func (s *behapyService) Rejections(key models.RecordingKey) (models.Intervals, bool, error) {
	return fp.LoadRejections(s.config.Root, key)
}

func (s *behapyService) SaveRejections(key models.RecordingKey, intervals models.Intervals) error {
	if err := s.checkKnown(key); err != nil {
		return err
	}
	if err := fp.SaveRejections(s.config.Root, key, intervals); err != nil {
		return err
	}
	s.log.Infof("Saved %d rejection intervals for %s", len(intervals), key)
	return nil
}

func (s *behapyService) ListRuns(limit int) ([]models.RunSummary, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	return s.ledger.ListRuns(limit)
}

func (s *behapyService) RunOutcomes(runID string) ([]models.Outcome, error) {
	if s.ledger == nil {
		return nil, ErrNoLedger
	}
	return s.ledger.GetRunOutcomes(runID)
}

func (s *behapyService) DeleteRun(runID string) error {
	if s.ledger == nil {
		return ErrNoLedger
	}
	return s.ledger.DeleteRun(runID)
}

func (s *behapyService) Root() string {
	return s.config.Root
}

// Close releases the ledger.
func (s *behapyService) Close() error {
	if s.ledger == nil {
		return nil
	}
	return s.ledger.Close()
}
