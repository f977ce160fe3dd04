package tdt

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/himanishpuri/behapy/pkg/utils"
)

var ErrStoreNotFound = errors.New("store not found in block")

// Session maps one TDT block onto BIDS entities.
type Session struct {
	Subject   string
	Session   string
	Task      string
	Run       string
	BlockPath string
}

var sessionColumns = []string{"subject", "session", "task", "run", "block_path"}

// LoadSessionTankMap reads the session CSV. Relative block paths are
// resolved against the CSV's directory.
func LoadSessionTankMap(path string) ([]Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty session file", path)
	}

	col := make(map[string]int)
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range sessionColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", path, name)
		}
	}

	base := filepath.Dir(path)
	sessions := make([]Session, 0, len(rows)-1)
	for _, row := range rows[1:] {
		s := Session{
			Subject:   strings.TrimSpace(row[col["subject"]]),
			Session:   strings.TrimSpace(row[col["session"]]),
			Task:      strings.TrimSpace(row[col["task"]]),
			Run:       strings.TrimSpace(row[col["run"]]),
			BlockPath: strings.TrimSpace(row[col["block_path"]]),
		}
		if !filepath.IsAbs(s.BlockPath) {
			s.BlockPath = filepath.Join(base, s.BlockPath)
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// StreamMapping routes one channel of a stream store to a BIDS label and
// channel name.
type StreamMapping struct {
	Store   string `json:"store"`
	Chan    int    `json:"chan"`
	Label   string `json:"label"`
	Channel string `json:"channel"`
}

// EventNames is the experiment description: which streams to export and
// how to name epoc stores.
type EventNames struct {
	Streams []StreamMapping   `json:"streams"`
	Events  map[string]string `json:"events"`
}

// LoadEventNames reads the experiment JSON file.
func LoadEventNames(path string) (*EventNames, error) {
	var names EventNames
	if err := utils.LoadJSON(path, &names); err != nil {
		return nil, err
	}
	for i := range names.Streams {
		m := &names.Streams[i]
		if m.Store == "" || m.Label == "" || m.Channel == "" {
			return nil, fmt.Errorf("%s: stream %d needs store, label and channel", path, i)
		}
		if m.Chan == 0 {
			m.Chan = 1
		}
	}
	return &names, nil
}

// ConvertBlock writes every session's mapped streams and named epocs into
// <root>/rawdata.
func ConvertBlock(sessions []Session, root string, names *EventNames) error {
	log := logger.GetLogger().WithPrefix("tdt2bids:")
	for _, s := range sessions {
		log.Infof("Converting block %s (subject %s, session %s)", s.BlockPath, s.Subject, s.Session)
		block, err := ReadBlock(s.BlockPath)
		if err != nil {
			return err
		}
		if err := writeStreams(root, s, block, names.Streams); err != nil {
			return err
		}
		if err := writeEvents(root, s, block, names.Events); err != nil {
			return err
		}
	}
	return nil
}

func writeStreams(root string, s Session, block *Block, mappings []StreamMapping) error {
	for _, m := range mappings {
		st, ok := block.Streams[m.Store]
		if !ok {
			return fmt.Errorf("%s: %s: %w", block.Path, m.Store, ErrStoreNotFound)
		}
		data, ok := st.Channels[m.Chan]
		if !ok {
			return fmt.Errorf("%s: %s channel %d: %w", block.Path, m.Store, m.Chan, ErrStoreNotFound)
		}
		key := models.RecordingKey{Subject: s.Subject, Session: s.Session, Task: s.Task, Run: s.Run, Label: m.Label}
		meta := fp.Sidecar{Fs: st.Fs, StartTime: st.StartTime}
		if err := fp.SaveChannel(root, key, m.Channel, data, meta); err != nil {
			return fmt.Errorf("saving %s channel %s: %w", key.Stem(), m.Channel, err)
		}
	}
	return nil
}

func writeEvents(root string, s Session, block *Block, events map[string]string) error {
	if len(events) == 0 {
		return nil
	}
	key := models.RecordingKey{Subject: s.Subject, Session: s.Session, Task: s.Task, Run: s.Run}
	path := bids.EventsPath(root, key)
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return err
	}

	rows := [][]string{{"onset", "event", "value"}}
	for _, ep := range block.Epocs {
		name, ok := events[ep.Name]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatFloat(ep.Onset-block.StartTime, 'f', -1, 64),
			name,
			strconv.FormatFloat(ep.Value, 'f', -1, 64),
		})
	}

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
