package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/himanishpuri/behapy/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const errDBClientNil = "db client is nil"

// ErrRunNotFound is returned when a run ID is unknown to the ledger.
var ErrRunNotFound = errors.New("run not found")

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Run struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Root       string `gorm:"index:idx_run_root" json:"root"`
	StartedAt  time.Time
	FinishedAt *time.Time
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Error      string `json:"error"`
}

type Outcome struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	RunID   string `gorm:"type:varchar(36);index:idx_outcome_run" json:"run_id"`
	Subject string `gorm:"index:idx_outcome_key,priority:1" json:"subject"`
	Session string `gorm:"index:idx_outcome_key,priority:2" json:"session"`
	Task    string `gorm:"index:idx_outcome_key,priority:3" json:"task"`
	RunName string `gorm:"column:run;index:idx_outcome_key,priority:4" json:"run"`
	Label   string `gorm:"index:idx_outcome_key,priority:5" json:"label"`
	Status  string `json:"status"`
	Rows    int    `json:"rows"`
	Detail  string `json:"detail"`
}

// NewDBClientWithPath opens or creates the ledger at dbPath.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=foreign_keys(1)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// sqlite has a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Run{}, &Outcome{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// StartRun opens a new ledger entry for root and returns its ID.
func (c *DBClient) StartRun(root string) (string, error) {
	if c == nil || c.DB == nil {
		return "", errors.New(errDBClientNil)
	}
	run := Run{ID: uuid.New().String(), Root: root, StartedAt: time.Now().UTC()}
	if err := c.DB.Create(&run).Error; err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return run.ID, nil
}

// RecordOutcome appends the outcome of one recording to a run.
func (c *DBClient) RecordOutcome(runID string, o models.Outcome) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	row := Outcome{
		RunID:   runID,
		Subject: o.Key.Subject,
		Session: o.Key.Session,
		Task:    o.Key.Task,
		RunName: o.Key.Run,
		Label:   o.Key.Label,
		Status:  string(o.Status),
		Rows:    o.Rows,
		Detail:  o.Detail,
	}
	if err := c.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

// FinishRun stores the final tallies of a run and the error that ended it.
func (c *DBClient) FinishRun(runID string, report *models.Report, runErr error) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	now := time.Now().UTC()
	updates := map[string]any{"finished_at": &now}
	if report != nil {
		updates["written"] = report.Written
		updates["skipped"] = report.Skipped
		updates["failed"] = report.Failed
	}
	if runErr != nil {
		updates["error"] = runErr.Error()
	}
	res := c.DB.Model(&Run{}).Where("id = ?", runID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("updating run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// ListRuns returns runs newest first. limit <= 0 returns all of them.
func (c *DBClient) ListRuns(limit int) ([]models.RunSummary, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	q := c.DB.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Run
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	out := make([]models.RunSummary, len(rows))
	for i, r := range rows {
		out[i] = models.RunSummary{
			ID:         r.ID,
			Root:       r.Root,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Written:    r.Written,
			Skipped:    r.Skipped,
			Failed:     r.Failed,
			Error:      r.Error,
		}
	}
	return out, nil
}

// GetRunOutcomes returns the outcomes of a run in insertion order.
func (c *DBClient) GetRunOutcomes(runID string) ([]models.Outcome, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var run Run
	if err := c.DB.Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	var rows []Outcome
	if err := c.DB.Where("run_id = ?", runID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	out := make([]models.Outcome, len(rows))
	for i, r := range rows {
		out[i] = models.Outcome{
			Key: models.RecordingKey{
				Subject: r.Subject,
				Session: r.Session,
				Task:    r.Task,
				Run:     r.RunName,
				Label:   r.Label,
			},
			Status: models.Status(r.Status),
			Rows:   r.Rows,
			Detail: r.Detail,
		}
	}
	return out, nil
}

// DeleteRun removes a run and its outcomes.
func (c *DBClient) DeleteRun(runID string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	return c.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&Outcome{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", runID).Delete(&Run{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil
	})
}
