// Package fp loads fibre photometry signals and curated rejections from a
// BIDS dataset and provides the signal primitives used by preprocessing.
package fp

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/himanishpuri/behapy/pkg/utils"
	"github.com/sbinet/npyio"
)

// DefaultIsoChannel is the channel name used for the isosbestic control.
const DefaultIsoChannel = "iso"

var (
	ErrNoChannel       = errors.New("channel not found")
	ErrChannelMismatch = errors.New("channels disagree")
)

// Sidecar is the JSON metadata stored next to every raw channel array and
// every preprocessed artifact.
type Sidecar struct {
	Fs        float64 `json:"fs"`
	StartTime float64 `json:"start_time"`
}

// Recording is one raw recording: a shared time index and its channels.
type Recording struct {
	Key      models.RecordingKey
	Time     []float64
	Channels map[string][]float64
	Attrs    models.Attrs
}

// Signal returns the values of the channel named by Attrs.Channel.
func (r *Recording) Signal() []float64 {
	return r.Channels[r.Attrs.Channel]
}

// Len is the number of samples.
func (r *Recording) Len() int {
	return len(r.Time)
}

// TimeIndex builds the sample times i/fs in seconds.
func TimeIndex(n int, fs float64) []float64 {
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i) / fs
	}
	return t
}

// LoadSignal reads the channels of key from rawdata. The channel named
// isoChannel must exist together with exactly one other channel, which
// becomes the recording's signal channel.
func LoadSignal(root string, key models.RecordingKey, isoChannel string) (*Recording, error) {
	files, err := bids.ChannelsFor(root, key)
	if err != nil {
		return nil, fmt.Errorf("listing channels for %s: %w", key.Stem(), err)
	}

	var signalCh string
	haveIso := false
	for _, f := range files {
		if f.Channel == isoChannel {
			haveIso = true
			continue
		}
		if signalCh != "" {
			return nil, fmt.Errorf("%s: more than one signal channel (%s, %s): %w",
				key.Stem(), signalCh, f.Channel, ErrChannelMismatch)
		}
		signalCh = f.Channel
	}
	if !haveIso {
		return nil, fmt.Errorf("%s: isosbestic channel %q: %w", key.Stem(), isoChannel, ErrNoChannel)
	}
	if signalCh == "" {
		return nil, fmt.Errorf("%s: signal channel: %w", key.Stem(), ErrNoChannel)
	}

	rec := &Recording{Key: key, Channels: make(map[string][]float64, 2)}
	var meta Sidecar
	for i, ch := range []string{signalCh, isoChannel} {
		data, m, err := LoadChannel(root, key, ch)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			meta = m
		} else {
			if len(data) != len(rec.Channels[signalCh]) {
				return nil, fmt.Errorf("%s: channel %s has %d samples, %s has %d: %w",
					key.Stem(), ch, len(data), signalCh, len(rec.Channels[signalCh]), ErrChannelMismatch)
			}
			if m.Fs != meta.Fs {
				return nil, fmt.Errorf("%s: channel %s fs %g differs from %g: %w",
					key.Stem(), ch, m.Fs, meta.Fs, ErrChannelMismatch)
			}
		}
		rec.Channels[ch] = data
	}

	rec.Attrs = models.Attrs{Channel: signalCh, Fs: meta.Fs, StartTime: meta.StartTime}
	rec.Time = TimeIndex(len(rec.Channels[signalCh]), meta.Fs)
	return rec, nil
}

// LoadChannel reads one channel array and its sidecar.
func LoadChannel(root string, key models.RecordingKey, channel string) ([]float64, Sidecar, error) {
	var meta Sidecar
	dataPath := bids.RawChannelPath(root, key, channel, "npy")
	metaPath := bids.RawChannelPath(root, key, channel, "json")

	f, err := os.Open(dataPath)
	if err != nil {
		return nil, meta, fmt.Errorf("opening %s: %w", dataPath, err)
	}
	defer f.Close()

	var data []float64
	if err := npyio.Read(f, &data); err != nil {
		return nil, meta, fmt.Errorf("decoding %s: %w", dataPath, err)
	}

	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, meta, fmt.Errorf("reading %s: %w", metaPath, err)
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, meta, fmt.Errorf("decoding %s: %w", metaPath, err)
	}
	if meta.Fs <= 0 || math.IsNaN(meta.Fs) || math.IsInf(meta.Fs, 0) {
		return nil, meta, fmt.Errorf("%s: invalid sampling frequency %g", metaPath, meta.Fs)
	}
	return data, meta, nil
}

// SaveChannel writes one raw channel array and its sidecar, creating the
// session directory when needed.
func SaveChannel(root string, key models.RecordingKey, channel string, data []float64, meta Sidecar) error {
	dataPath := bids.RawChannelPath(root, key, channel, "npy")
	if err := utils.MakeDir(filepath.Dir(dataPath)); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(dataPath), err)
	}

	f, err := os.Create(dataPath)
	if err != nil {
		return err
	}
	if err := npyio.Write(f, data); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", dataPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return WriteSidecar(bids.RawChannelPath(root, key, channel, "json"), meta)
}

// WriteSidecar writes meta as JSON to path.
func WriteSidecar(path string, meta Sidecar) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(path, raw)
}

// ChannelNames returns the sorted channel names of r.
func (r *Recording) ChannelNames() []string {
	names := make([]string, 0, len(r.Channels))
	for name := range r.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
