package fp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/himanishpuri/behapy/pkg/utils"
)

var rejectionHeader = []string{"start", "end"}

// LoadRejections reads the curated rejection intervals of key. A recording
// that has not been curated yet yields ok == false and no error.
func LoadRejections(root string, key models.RecordingKey) (models.Intervals, bool, error) {
	path := bids.RejectionsPath(root, key)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	intervals, err := ReadIntervals(f)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return intervals, true, nil
}

// ReadIntervals parses a start,end CSV table. The header row is optional.
func ReadIntervals(r io.Reader) (models.Intervals, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	intervals := make(models.Intervals, 0, len(records))
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], rejectionHeader[0]) {
			continue
		}
		start, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid start: %w", i+1, err)
		}
		end, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid end: %w", i+1, err)
		}
		intervals = append(intervals, models.Interval{Start: start, End: end})
	}
	if err := intervals.Validate(); err != nil {
		return nil, err
	}
	return intervals.Sorted(), nil
}

// SaveRejections replaces the rejection intervals of key.
func SaveRejections(root string, key models.RecordingKey, intervals models.Intervals) error {
	if err := intervals.Validate(); err != nil {
		return err
	}
	path := bids.RejectionsPath(root, key)
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write(rejectionHeader)
	for _, iv := range intervals.Sorted() {
		w.Write([]string{
			strconv.FormatFloat(iv.Start, 'g', -1, 64),
			strconv.FormatFloat(iv.End, 'g', -1, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
