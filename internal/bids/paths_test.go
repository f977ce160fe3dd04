package bids

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/himanishpuri/behapy/pkg/models"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

var key = models.RecordingKey{Subject: "01", Session: "2", Task: "lever", Run: "1", Label: "dms"}

func TestPaths(t *testing.T) {
	root := "/data"
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"raw npy", RawChannelPath(root, key, "iso", "npy"),
			"/data/rawdata/sub-01/ses-2/fp/sub-01_ses-2_task-lever_run-1_label-dms_channel-iso.npy"},
		{"events", EventsPath(root, key),
			"/data/rawdata/sub-01/ses-2/fp/sub-01_ses-2_task-lever_run-1_events.csv"},
		{"preprocessed", PreprocessedPath(root, key, "json"),
			"/data/derivatives/preprocess/sub-01/ses-2/fp/sub-01_ses-2_task-lever_run-1_label-dms.json"},
		{"rejections", RejectionsPath(root, key),
			"/data/derivatives/rejections/sub-01/ses-2/fp/sub-01_ses-2_task-lever_run-1_label-dms.csv"},
		{"ledger", LedgerPath(root), "/data/derivatives/preprocess/behapy.sqlite3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != filepath.FromSlash(tt.want) {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestRecordings(t *testing.T) {
	root := t.TempDir()
	other := models.RecordingKey{Subject: "01", Session: "1", Task: "lever", Run: "1", Label: "dms"}
	for _, k := range []models.RecordingKey{key, other} {
		touch(t, RawChannelPath(root, k, "iso", "npy"))
		touch(t, RawChannelPath(root, k, "dlight", "npy"))
		touch(t, RawChannelPath(root, k, "dlight", "json"))
	}
	// wrong directory for its entities
	misplaced := RawChannelPath(root, key, "red", "npy")
	touch(t, filepath.Join(root, RawDir, "sub-02", "ses-2", Modality, filepath.Base(misplaced)))
	touch(t, EventsPath(root, key))

	keys, err := Recordings(root)
	if err != nil {
		t.Fatalf("Recordings failed: %v", err)
	}
	if diff := cmp.Diff([]models.RecordingKey{other, key}, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	files, err := GetRecordings(filepath.Join(root, RawDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 4 || files[0].Channel != "dlight" || files[1].Channel != "iso" {
		t.Errorf("Unexpected channel files %+v", files)
	}
}

func TestRecordingsMissingRoot(t *testing.T) {
	if _, err := Recordings(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing rawdata")
	}
}

func TestChannelsFor(t *testing.T) {
	root := t.TempDir()
	touch(t, RawChannelPath(root, key, "iso", "npy"))
	touch(t, RawChannelPath(root, key, "dlight", "npy"))
	otherLabel := key
	otherLabel.Label = "nac"
	touch(t, RawChannelPath(root, otherLabel, "iso", "npy"))

	files, err := ChannelsFor(root, key)
	if err != nil {
		t.Fatalf("ChannelsFor failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 channels, got %d", len(files))
	}
	for _, f := range files {
		if f.Key != key {
			t.Errorf("Unexpected key %v", f.Key)
		}
	}

	missing, err := ChannelsFor(root, models.RecordingKey{Subject: "09"})
	if err != nil || len(missing) != 0 {
		t.Errorf("Expected no channels and no error, got %v, %v", missing, err)
	}
}
