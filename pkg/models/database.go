package models

import "time"

// Status is the per-recording result of a preprocessing run.
type Status string

const (
	StatusWritten Status = "written"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome records what happened to one recording.
type Outcome struct {
	Key    RecordingKey `json:"key"`
	Status Status       `json:"status"`
	Rows   int          `json:"rows"`   // rows in the written array
	Detail string       `json:"detail"` // skip reason or error text
}

// Report summarises a preprocessing run.
type Report struct {
	RunID    string    `json:"run_id"`
	Outcomes []Outcome `json:"outcomes"`
	Written  int       `json:"written"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
}

// Add appends an outcome and updates the tallies.
func (r *Report) Add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusWritten:
		r.Written++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// RunSummary is a ledger entry for one preprocessing run.
type RunSummary struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt *time.Time
	Written    int
	Skipped    int
	Failed     int
	Error      string
}
