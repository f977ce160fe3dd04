package main

import (
	"fmt"
	"time"

	"github.com/himanishpuri/behapy/pkg/models"
)

const (
	// DefaultMaxPoints bounds the trace returned to the browser.
	DefaultMaxPoints = 4000
	MaxPointsLimit   = 100000
)

// RecordingDTO represents a recording in API responses
type RecordingDTO struct {
	Index        int                 `json:"index"`
	Key          models.RecordingKey `json:"key"`
	Stem         string              `json:"stem"`
	Curated      bool                `json:"curated"`
	Preprocessed bool                `json:"preprocessed"`
}

// ListRecordingsResponse is the response for GET /api/recordings
type ListRecordingsResponse struct {
	Recordings []RecordingDTO `json:"recordings"`
	Count      int            `json:"count"`
}

// SignalResponse is the response for GET /api/recordings/{index}/signal
type SignalResponse struct {
	Key       models.RecordingKey `json:"key"`
	Channel   string              `json:"channel"`
	Fs        float64             `json:"fs"`
	StartTime float64             `json:"start_time"`
	Samples   int                 `json:"samples"`
	Time      []float64           `json:"time"`
	Signal    []float64           `json:"signal"`
	IsoTime   []float64           `json:"iso_time"`
	Iso       []float64           `json:"iso"`
}

// RejectionsResponse is the response for GET/PUT /api/recordings/{index}/rejections
type RejectionsResponse struct {
	Key       models.RecordingKey `json:"key"`
	Curated   bool                `json:"curated"`
	Intervals models.Intervals    `json:"intervals"`
}

// SaveRejectionsRequest is the request body for PUT /api/recordings/{index}/rejections
type SaveRejectionsRequest struct {
	Intervals models.Intervals `json:"intervals"`
}

// Validate checks if the request is valid
func (r *SaveRejectionsRequest) Validate() error {
	if r.Intervals == nil {
		return fmt.Errorf("intervals is required (use [] to clear)")
	}
	return r.Intervals.Validate()
}

// RunDTO represents a ledger entry in API responses
type RunDTO struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Written    int        `json:"written"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Error      string     `json:"error,omitempty"`
}

// ListRunsResponse is the response for GET /api/runs
type ListRunsResponse struct {
	Runs  []RunDTO `json:"runs"`
	Count int      `json:"count"`
}

// RunOutcomesResponse is the response for GET /api/runs/{id}
type RunOutcomesResponse struct {
	ID       string           `json:"id"`
	Outcomes []models.Outcome `json:"outcomes"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
