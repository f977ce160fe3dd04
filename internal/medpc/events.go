package medpc

import (
	"math"

	"github.com/himanishpuri/behapy/pkg/logger"
)

// Info is the per-session experiment description found in the header.
type Info struct {
	Subject    string
	Experiment string
	Group      string
	Box        string
	StartDate  string
	StartTime  string
	EndDate    string
	EndTime    string
	MSN        string
	File       string
}

// ExperimentInfo extracts the header fields of a session.
func ExperimentInfo(v *Variables) Info {
	return Info{
		Subject:    v.Header["Subject"],
		Experiment: v.Header["Experiment"],
		Group:      v.Header["Group"],
		Box:        v.Header["Box"],
		StartDate:  v.Header["Start Date"],
		StartTime:  v.Header["Start Time"],
		EndDate:    v.Header["End Date"],
		EndTime:    v.Header["End Time"],
		MSN:        v.Header["MSN"],
		File:       v.Header["File"],
	}
}

// Event is one timestamped behavioural event.
type Event struct {
	Subject   string
	Timestamp float64
	Event     string
}

// GetEvents pairs timestamps with event indices position by position and
// names them through eventMap. Indices missing from the map (including the
// zero padding MedPC leaves at the end of arrays) are dropped.
func GetEvents(timestamps, indices []float64, eventMap map[int]string) []Event {
	n := len(timestamps)
	if len(indices) < n {
		n = len(indices)
	}
	events := make([]Event, 0, n)
	dropped := 0
	for i := 0; i < n; i++ {
		name, ok := eventMap[int(math.Round(indices[i]))]
		if !ok {
			dropped++
			continue
		}
		events = append(events, Event{Timestamp: timestamps[i], Event: name})
	}
	if dropped > 0 {
		logger.Debugf("Dropped %d events with unmapped indices", dropped)
	}
	return events
}
