package medpc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/utils"
)

// ErrNoFiles is returned when the source pattern matches nothing.
var ErrNoFiles = errors.New("no MedPC files matched")

// Config names the arrays holding timestamps and event indices and maps
// event indices to event names.
type Config struct {
	Timestamp  string
	EventIndex string
	EventMap   map[int]string
}

type rawConfig struct {
	Timestamp  string            `json:"timestamp"`
	EventIndex string            `json:"event_index"`
	EventMap   map[string]string `json:"event_map"`
}

// LoadConfig reads the conversion config. Event map keys are integers
// written as JSON strings.
func LoadConfig(path string) (*Config, error) {
	var raw rawConfig
	if err := utils.LoadJSON(path, &raw); err != nil {
		return nil, err
	}
	if raw.Timestamp == "" || raw.EventIndex == "" {
		return nil, fmt.Errorf("%s: timestamp and event_index are required", path)
	}

	cfg := &Config{
		Timestamp:  raw.Timestamp,
		EventIndex: raw.EventIndex,
		EventMap:   make(map[int]string, len(raw.EventMap)),
	}
	for key, name := range raw.EventMap {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("%s: event_map key %q is not an integer", path, key)
		}
		cfg.EventMap[idx] = name
	}
	return cfg, nil
}

// Result lists the files produced by Convert.
type Result struct {
	InfoPath   string
	EventsPath string
	Sessions   int
	Events     int
}

// Convert parses every file matching sourcePattern and writes
// <experiment>_info.csv and <experiment>_events.csv into outputDir. The
// experiment name is "multi" when the sessions span several experiments.
func Convert(sourcePattern, outputDir, configPath string) (*Result, error) {
	log := logger.GetLogger().WithPrefix("medpc2csv:")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	files, err := utils.Glob(sourcePattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", sourcePattern, ErrNoFiles)
	}

	var (
		infos  []Info
		events []Event
	)
	for _, fn := range files {
		sessions, err := ParseFile(fn)
		if err != nil {
			return nil, err
		}
		for _, vars := range sessions {
			info := ExperimentInfo(vars)
			timestamps, err := vars.Array(cfg.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn, err)
			}
			indices, err := vars.Array(cfg.EventIndex)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", fn, err)
			}
			sessionEvents := GetEvents(timestamps, indices, cfg.EventMap)
			for i := range sessionEvents {
				sessionEvents[i].Subject = info.Subject
			}
			log.Debugf("%s: subject %s, %d events", fn, info.Subject, len(sessionEvents))
			infos = append(infos, info)
			events = append(events, sessionEvents...)
		}
	}

	expName := experimentName(infos)
	if err := utils.MakeDir(outputDir); err != nil {
		return nil, err
	}
	res := &Result{
		InfoPath:   filepath.Join(outputDir, expName+"_info.csv"),
		EventsPath: filepath.Join(outputDir, expName+"_events.csv"),
		Sessions:   len(infos),
		Events:     len(events),
	}
	if err := writeInfo(res.InfoPath, infos); err != nil {
		return nil, err
	}
	if err := writeEvents(res.EventsPath, events); err != nil {
		return nil, err
	}
	log.Infof("Converted %d sessions from %d files into %s", len(infos), len(files), outputDir)
	return res, nil
}

func experimentName(infos []Info) string {
	names := make(map[string]bool)
	for _, info := range infos {
		names[info.Experiment] = true
	}
	if len(names) > 1 {
		return "multi"
	}
	if len(infos) == 0 || infos[0].Experiment == "" {
		return "experiment"
	}
	return infos[0].Experiment
}

func writeInfo(path string, infos []Info) error {
	rows := [][]string{{"subject", "experiment", "group", "box", "start_date",
		"start_time", "end_date", "end_time", "msn", "file"}}
	for _, in := range infos {
		rows = append(rows, []string{in.Subject, in.Experiment, in.Group, in.Box,
			in.StartDate, in.StartTime, in.EndDate, in.EndTime, in.MSN, in.File})
	}
	return writeCSV(path, rows)
}

func writeEvents(path string, events []Event) error {
	rows := [][]string{{"subject", "timestamp", "event"}}
	for _, ev := range events {
		rows = append(rows, []string{ev.Subject,
			strconv.FormatFloat(ev.Timestamp, 'f', -1, 64), ev.Event})
	}
	return writeCSV(path, rows)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
