package behapy

import "github.com/himanishpuri/behapy/pkg/models"

// Trace is a raw recording as served to the dashboard.
type Trace struct {
	Key       models.RecordingKey
	Channel   string    // signal channel name
	Fs        float64   // sampling frequency in Hz
	StartTime float64   // unix seconds
	Time      []float64 // seconds from recording start
	Signal    []float64
	Iso       []float64
}

// Duration is the length of the trace in seconds.
func (t *Trace) Duration() float64 {
	if t.Fs <= 0 {
		return 0
	}
	return float64(len(t.Time)) / t.Fs
}
