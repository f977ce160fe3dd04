package models

import (
	"fmt"
	"math"
	"sort"
)

// RecordingKey identifies one fibre photometry recording in a BIDS dataset.
type RecordingKey struct {
	Subject string `json:"subject"`
	Session string `json:"session"`
	Task    string `json:"task"`
	Run     string `json:"run"`
	Label   string `json:"label"`
}

// Stem renders the BIDS entity chain shared by every file of the recording.
func (k RecordingKey) Stem() string {
	return fmt.Sprintf("sub-%s_ses-%s_task-%s_run-%s_label-%s",
		k.Subject, k.Session, k.Task, k.Run, k.Label)
}

func (k RecordingKey) String() string {
	return fmt.Sprintf("subject %s, session %s, task %s, run %s and label %s",
		k.Subject, k.Session, k.Task, k.Run, k.Label)
}

// Less orders keys field by field.
func (k RecordingKey) Less(o RecordingKey) bool {
	a := [5]string{k.Subject, k.Session, k.Task, k.Run, k.Label}
	b := [5]string{o.Subject, o.Session, o.Task, o.Run, o.Label}
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Interval is a closed time range in seconds from the recording start.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Intervals is a set of rejected ranges ordered by Start.
type Intervals []Interval

// Contains reports whether t falls inside any interval (bounds included).
func (iv Intervals) Contains(t float64) bool {
	for _, r := range iv {
		if t >= r.Start && t <= r.End {
			return true
		}
		if r.Start > t {
			// sorted by Start, nothing later can match
			return false
		}
	}
	return false
}

// Validate checks every interval is well formed.
func (iv Intervals) Validate() error {
	for i, r := range iv {
		if math.IsNaN(r.Start) || math.IsNaN(r.End) {
			return fmt.Errorf("interval %d: NaN bound", i)
		}
		if r.End < r.Start {
			return fmt.Errorf("interval %d: end %g before start %g", i, r.End, r.Start)
		}
	}
	return nil
}

// Sorted returns a copy ordered by Start, then End.
func (iv Intervals) Sorted() Intervals {
	out := make(Intervals, len(iv))
	copy(out, iv)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start == out[j].Start {
			return out[i].End < out[j].End
		}
		return out[i].Start < out[j].Start
	})
	return out
}

// Attrs are the recording attributes carried into the metadata sidecar.
type Attrs struct {
	Channel   string  `json:"channel"`
	Fs        float64 `json:"fs"`
	StartTime float64 `json:"start_time"`
}
