package tdt

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/models"
)

const blockStart = 1.6e9

type chunk struct {
	store   string
	channel uint16
	ts      float64
	fs      float32
	data    []float32
}

// writeBlock synthesises a minimal TDT block with float32 stream chunks
// and strobe epocs.
func writeBlock(t *testing.T, dir string, chunks []chunk, epocs []Epoc) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	var tsq, tev bytes.Buffer
	put := func(h tsqHeader) {
		if err := binary.Write(&tsq, binary.LittleEndian, h); err != nil {
			t.Fatalf("writing header: %v", err)
		}
	}

	put(tsqHeader{Type: evTypeMark, Code: markStartBlock, Timestamp: blockStart})
	for _, c := range chunks {
		h := tsqHeader{
			Size:      int32(10 + len(c.data)),
			Type:      evTypeStream,
			Code:      StoreCode(c.store),
			Channel:   c.channel,
			Timestamp: c.ts,
			Format:    formatFloat,
			Frequency: c.fs,
		}
		binary.LittleEndian.PutUint64(h.Offset[:], uint64(tev.Len()))
		put(h)
		binary.Write(&tev, binary.LittleEndian, c.data)
	}
	for _, e := range epocs {
		h := tsqHeader{Size: 10, Type: evTypeStrobeOn, Code: StoreCode(e.Name), Timestamp: e.Onset}
		binary.LittleEndian.PutUint64(h.Offset[:], math.Float64bits(e.Value))
		put(h)
	}
	put(tsqHeader{Type: evTypeMark, Code: markStopBlock, Timestamp: blockStart + 10})

	base := filepath.Join(dir, "Tank_Block-1")
	if err := os.WriteFile(base+".tsq", tsq.Bytes(), 0o644); err != nil {
		t.Fatalf("writing tsq: %v", err)
	}
	if err := os.WriteFile(base+".tev", tev.Bytes(), 0o644); err != nil {
		t.Fatalf("writing tev: %v", err)
	}
}

func testChunks() []chunk {
	return []chunk{
		{store: "_465", channel: 1, ts: blockStart + 0.5, fs: 4, data: []float32{1, 2, 3}},
		{store: "_405", channel: 1, ts: blockStart + 0.5, fs: 4, data: []float32{10, 20, 30}},
		{store: "_465", channel: 1, ts: blockStart + 1.25, fs: 4, data: []float32{4, 5}},
		{store: "_405", channel: 1, ts: blockStart + 1.25, fs: 4, data: []float32{40, 50}},
	}
}

func TestStoreCodeRoundTrip(t *testing.T) {
	for _, name := range []string{"_465", "PtA", "x"} {
		if got := storeName(StoreCode(name)); got != name {
			t.Errorf("round trip of %q gave %q", name, got)
		}
	}
}

func TestReadBlock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "Block-1")
	epocs := []Epoc{
		{Name: "PtA", Onset: blockStart + 3, Value: 1},
		{Name: "PtA", Onset: blockStart + 2, Value: 2},
	}
	writeBlock(t, dir, testChunks(), epocs)

	block, err := ReadBlock(dir)
	if err != nil {
		t.Fatalf("ReadBlock failed: %v", err)
	}

	if block.StartTime != blockStart || block.Duration() != 10 {
		t.Errorf("Unexpected block times start=%v duration=%v", block.StartTime, block.Duration())
	}

	st, ok := block.Streams["_465"]
	if !ok {
		t.Fatal("Stream _465 not found")
	}
	if st.Fs != 4 || st.StartTime != blockStart+0.5 {
		t.Errorf("Unexpected stream fs=%v start=%v", st.Fs, st.StartTime)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5}, st.Channels[1]); diff != "" {
		t.Errorf("stream data mismatch (-want +got):\n%s", diff)
	}

	if len(block.Epocs) != 2 || block.Epocs[0].Value != 2 {
		t.Errorf("Expected epocs sorted by onset, got %+v", block.Epocs)
	}
}

func TestReadBlockNotABlock(t *testing.T) {
	_, err := ReadBlock(t.TempDir())
	if !errors.Is(err, ErrNotBlock) {
		t.Errorf("Expected ErrNotBlock, got %v", err)
	}
}

func TestLoadSessionTankMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.csv")
	content := "subject,session,task,run,block_path\n01,1,lever,1,tanks/Block-1\n02,1,lever,1,/abs/Block-2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	sessions, err := LoadSessionTankMap(path)
	if err != nil {
		t.Fatalf("LoadSessionTankMap failed: %v", err)
	}
	want := []Session{
		{Subject: "01", Session: "1", Task: "lever", Run: "1", BlockPath: filepath.Join(dir, "tanks", "Block-1")},
		{Subject: "02", Session: "1", Task: "lever", Run: "1", BlockPath: "/abs/Block-2"},
	}
	if diff := cmp.Diff(want, sessions); diff != "" {
		t.Errorf("sessions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSessionTankMapMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")
	os.WriteFile(path, []byte("subject,session,task\n01,1,lever\n"), 0o644)

	if _, err := LoadSessionTankMap(path); err == nil {
		t.Error("Expected error for missing columns")
	}
}

func TestLoadEventNamesDefaultsChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.json")
	os.WriteFile(path, []byte(`{
		"streams": [{"store": "_465", "label": "dms", "channel": "dlight"}],
		"events": {"PtA": "press"},
	}`), 0o644)

	names, err := LoadEventNames(path)
	if err != nil {
		t.Fatalf("LoadEventNames failed: %v", err)
	}
	if names.Streams[0].Chan != 1 {
		t.Errorf("Expected default chan 1, got %d", names.Streams[0].Chan)
	}
}

func TestConvertBlock(t *testing.T) {
	tmp := t.TempDir()
	blockDir := filepath.Join(tmp, "Block-1")
	writeBlock(t, blockDir, testChunks(), []Epoc{{Name: "PtA", Onset: blockStart + 2, Value: 1}, {Name: "Unk", Onset: blockStart + 4}})

	root := filepath.Join(tmp, "bids")
	sessions := []Session{{Subject: "01", Session: "1", Task: "lever", Run: "1", BlockPath: blockDir}}
	names := &EventNames{
		Streams: []StreamMapping{
			{Store: "_465", Chan: 1, Label: "dms", Channel: "dlight"},
			{Store: "_405", Chan: 1, Label: "dms", Channel: "iso"},
		},
		Events: map[string]string{"PtA": "press"},
	}

	var logs bytes.Buffer
	logger.SetOutput(&logs)
	prevLevel := logger.GetLogger().Level()
	logger.SetLevel(logger.INFO)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
		logger.SetLevel(prevLevel)
	})

	if err := ConvertBlock(sessions, root, names); err != nil {
		t.Fatalf("ConvertBlock failed: %v", err)
	}
	if !strings.Contains(logs.String(), "tdt2bids: Converting block") {
		t.Errorf("Expected prefixed log line, got %q", logs.String())
	}

	key := models.RecordingKey{Subject: "01", Session: "1", Task: "lever", Run: "1", Label: "dms"}
	rec, err := fp.LoadSignal(root, key, "iso")
	if err != nil {
		t.Fatalf("LoadSignal on converted data failed: %v", err)
	}
	if rec.Attrs.Channel != "dlight" || rec.Attrs.Fs != 4 {
		t.Errorf("Unexpected attrs %+v", rec.Attrs)
	}
	if diff := cmp.Diff([]float64{10, 20, 30, 40, 50}, rec.Channels["iso"]); diff != "" {
		t.Errorf("iso mismatch (-want +got):\n%s", diff)
	}

	f, err := os.Open(bids.EventsPath(root, key))
	if err != nil {
		t.Fatalf("Events file missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"onset", "event", "value"}, {"2", "press", "1"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertBlockMissingStore(t *testing.T) {
	tmp := t.TempDir()
	blockDir := filepath.Join(tmp, "Block-1")
	writeBlock(t, blockDir, testChunks(), nil)

	names := &EventNames{Streams: []StreamMapping{{Store: "_560", Chan: 1, Label: "dms", Channel: "red"}}}
	err := ConvertBlock([]Session{{Subject: "01", Session: "1", Task: "t", Run: "1", BlockPath: blockDir}}, tmp, names)
	if !errors.Is(err, ErrStoreNotFound) {
		t.Errorf("Expected ErrStoreNotFound, got %v", err)
	}
}
