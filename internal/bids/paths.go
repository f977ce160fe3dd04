// Package bids resolves file locations inside a BIDS dataset and discovers
// the fibre photometry recordings stored under rawdata.
package bids

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/himanishpuri/behapy/pkg/models"
)

const (
	RawDir        = "rawdata"
	PreprocessDir = "derivatives/preprocess"
	RejectionDir  = "derivatives/rejections"
	Modality      = "fp"
)

// ChannelFile is one channel of one recording found under rawdata.
type ChannelFile struct {
	Key     models.RecordingKey
	Channel string
	Path    string
}

var channelFileRe = regexp.MustCompile(
	`^sub-([^_]+)_ses-([^_]+)_task-([^_]+)_run-([^_]+)_label-([^_]+)_channel-([^_]+)\.npy$`)

func sessionDir(root, base string, key models.RecordingKey) string {
	return filepath.Join(root, filepath.FromSlash(base),
		"sub-"+key.Subject, "ses-"+key.Session, Modality)
}

// RawChannelPath returns the raw array (or sidecar, by ext) for one channel.
func RawChannelPath(root string, key models.RecordingKey, channel, ext string) string {
	name := fmt.Sprintf("%s_channel-%s.%s", key.Stem(), channel, ext)
	return filepath.Join(sessionDir(root, RawDir, key), name)
}

// EventsPath is the events table written next to the raw streams of a run.
func EventsPath(root string, key models.RecordingKey) string {
	name := fmt.Sprintf("sub-%s_ses-%s_task-%s_run-%s_events.csv",
		key.Subject, key.Session, key.Task, key.Run)
	return filepath.Join(sessionDir(root, RawDir, key), name)
}

// PreprocessedPath returns the derived file for key with the given extension.
func PreprocessedPath(root string, key models.RecordingKey, ext string) string {
	return filepath.Join(sessionDir(root, PreprocessDir, key), key.Stem()+"."+ext)
}

// RejectionsPath returns the curated rejection intervals file for key.
func RejectionsPath(root string, key models.RecordingKey) string {
	return filepath.Join(sessionDir(root, RejectionDir, key), key.Stem()+".csv")
}

// LedgerPath is the default location of the preprocessing run ledger.
func LedgerPath(root string) string {
	return filepath.Join(root, filepath.FromSlash(PreprocessDir), "behapy.sqlite3")
}

// GetRecordings walks rawDir and returns every channel file that follows the
// sub-*/ses-*/fp naming convention. Files whose entities disagree with their
// directories are ignored.
func GetRecordings(rawDir string) ([]ChannelFile, error) {
	info, err := os.Stat(rawDir)
	if err != nil {
		return nil, fmt.Errorf("reading raw data root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("raw data root %s is not a directory", rawDir)
	}

	var files []ChannelFile
	err = filepath.WalkDir(rawDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := channelFileRe.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		key := models.RecordingKey{Subject: m[1], Session: m[2], Task: m[3], Run: m[4], Label: m[5]}
		if filepath.Dir(path) != sessionDir(rawDir, ".", key) {
			return nil
		}
		files = append(files, ChannelFile{Key: key, Channel: m[6], Path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Key != files[j].Key {
			return files[i].Key.Less(files[j].Key)
		}
		return files[i].Channel < files[j].Channel
	})
	return files, nil
}

// UniqueKeys collapses channel files into one key per recording, in order.
func UniqueKeys(files []ChannelFile) []models.RecordingKey {
	seen := make(map[models.RecordingKey]bool, len(files))
	keys := make([]models.RecordingKey, 0, len(files))
	for _, f := range files {
		if seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		keys = append(keys, f.Key)
	}
	return keys
}

// Recordings lists the distinct recordings under <root>/rawdata.
func Recordings(root string) ([]models.RecordingKey, error) {
	files, err := GetRecordings(filepath.Join(root, RawDir))
	if err != nil {
		return nil, err
	}
	return UniqueKeys(files), nil
}

// ChannelsFor returns the channel files of a single recording.
func ChannelsFor(root string, key models.RecordingKey) ([]ChannelFile, error) {
	dir := sessionDir(root, RawDir, key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []ChannelFile
	for _, e := range entries {
		m := channelFileRe.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		k := models.RecordingKey{Subject: m[1], Session: m[2], Task: m[3], Run: m[4], Label: m[5]}
		if k != key {
			continue
		}
		out = append(out, ChannelFile{Key: k, Channel: m[6], Path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}
