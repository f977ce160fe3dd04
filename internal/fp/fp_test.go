package fp

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/pkg/models"
)

var testKey = models.RecordingKey{Subject: "01", Session: "1", Task: "lever", Run: "1", Label: "dms"}

func constant(n int, v float64) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = v
	}
	return x
}

func saveChannel(t *testing.T, root, channel string, data []float64, meta Sidecar) {
	t.Helper()
	if err := SaveChannel(root, testKey, channel, data, meta); err != nil {
		t.Fatalf("SaveChannel(%s) failed: %v", channel, err)
	}
}

func TestLoadSignal(t *testing.T) {
	root := t.TempDir()
	meta := Sidecar{Fs: 10, StartTime: 1700000000}
	saveChannel(t, root, "dlight", []float64{1, 2, 3, 4}, meta)
	saveChannel(t, root, "iso", []float64{5, 6, 7, 8}, meta)

	rec, err := LoadSignal(root, testKey, DefaultIsoChannel)
	if err != nil {
		t.Fatalf("LoadSignal failed: %v", err)
	}

	want := models.Attrs{Channel: "dlight", Fs: 10, StartTime: 1700000000}
	if rec.Attrs != want {
		t.Errorf("Attrs = %+v, want %+v", rec.Attrs, want)
	}
	if diff := cmp.Diff([]float64{0, 0.1, 0.2, 0.3}, rec.Time, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("time mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4}, rec.Signal()); diff != "" {
		t.Errorf("signal mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"dlight", "iso"}, rec.ChannelNames()); diff != "" {
		t.Errorf("channel names mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadSignalErrors(t *testing.T) {
	meta := Sidecar{Fs: 10}
	tests := []struct {
		name    string
		setup   func(root string)
		wantErr error
	}{
		{
			name: "missing iso",
			setup: func(root string) {
				saveChannel(t, root, "dlight", []float64{1}, meta)
			},
			wantErr: ErrNoChannel,
		},
		{
			name: "missing signal",
			setup: func(root string) {
				saveChannel(t, root, "iso", []float64{1}, meta)
			},
			wantErr: ErrNoChannel,
		},
		{
			name: "two signals",
			setup: func(root string) {
				saveChannel(t, root, "iso", []float64{1}, meta)
				saveChannel(t, root, "dlight", []float64{1}, meta)
				saveChannel(t, root, "red", []float64{1}, meta)
			},
			wantErr: ErrChannelMismatch,
		},
		{
			name: "length mismatch",
			setup: func(root string) {
				saveChannel(t, root, "iso", []float64{1, 2}, meta)
				saveChannel(t, root, "dlight", []float64{1}, meta)
			},
			wantErr: ErrChannelMismatch,
		},
		{
			name: "fs mismatch",
			setup: func(root string) {
				saveChannel(t, root, "iso", []float64{1}, Sidecar{Fs: 20})
				saveChannel(t, root, "dlight", []float64{1}, meta)
			},
			wantErr: ErrChannelMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			tt.setup(root)
			_, err := LoadSignal(root, testKey, DefaultIsoChannel)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadChannelInvalidFs(t *testing.T) {
	root := t.TempDir()
	saveChannel(t, root, "iso", []float64{1}, Sidecar{Fs: 0})

	if _, _, err := LoadChannel(root, testKey, "iso"); err == nil {
		t.Error("Expected error for zero sampling frequency")
	}
}

func TestLoadRejectionsMissing(t *testing.T) {
	intervals, ok, err := LoadRejections(t.TempDir(), testKey)
	if err != nil || ok || intervals != nil {
		t.Errorf("Expected (nil, false, nil), got (%v, %v, %v)", intervals, ok, err)
	}
}

func TestSaveAndLoadRejections(t *testing.T) {
	root := t.TempDir()
	in := models.Intervals{{Start: 20, End: 25.5}, {Start: 1, End: 2}}
	if err := SaveRejections(root, testKey, in); err != nil {
		t.Fatalf("SaveRejections failed: %v", err)
	}

	got, ok, err := LoadRejections(root, testKey)
	if err != nil || !ok {
		t.Fatalf("LoadRejections failed: ok=%v err=%v", ok, err)
	}
	want := models.Intervals{{Start: 1, End: 2}, {Start: 20, End: 25.5}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("intervals mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectionsMalformed(t *testing.T) {
	root := t.TempDir()
	path := bids.RejectionsPath(root, testKey)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("start,end\n1,abc\n"), 0o644)

	_, ok, err := LoadRejections(root, testKey)
	if err == nil {
		t.Fatal("Expected error for malformed rejections file")
	}
	if ok {
		t.Error("Expected ok == false on error")
	}
}

func TestReadIntervals(t *testing.T) {
	got, err := ReadIntervals(strings.NewReader("5, 6\n1, 2\n"))
	if err != nil {
		t.Fatalf("ReadIntervals failed: %v", err)
	}
	if diff := cmp.Diff(models.Intervals{{Start: 1, End: 2}, {Start: 5, End: 6}}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadIntervals(strings.NewReader("start,end\n3,1\n")); err == nil {
		t.Error("Expected error for reversed interval")
	}
	if _, err := ReadIntervals(strings.NewReader("1,2,3\n")); err == nil {
		t.Error("Expected error for extra column")
	}
	if _, err := ReadIntervals(strings.NewReader("start,end\n20,25\nNaN,NaN\n1,2\n")); err == nil {
		t.Error("Expected error for NaN bounds")
	}
	if _, err := ReadIntervals(strings.NewReader("1,NaN\n")); err == nil {
		t.Error("Expected error for NaN end")
	}

	empty, err := ReadIntervals(strings.NewReader("start,end\n"))
	if err != nil || len(empty) != 0 {
		t.Errorf("Expected empty intervals, got %v, %v", empty, err)
	}
}

func TestReject(t *testing.T) {
	rec := &Recording{Time: TimeIndex(31, 1)}
	sel := Reject(rec, models.Intervals{{Start: 25, End: 40}, {Start: 10, End: 20}})

	if sel.Len() != 14 {
		t.Fatalf("Expected 14 kept samples, got %d", sel.Len())
	}
	for _, tm := range sel.Time {
		if (tm >= 10 && tm <= 20) || tm >= 25 {
			t.Errorf("Time %v should have been rejected", tm)
		}
	}
	if sel.Index[10] != 21 {
		t.Errorf("Expected index 21 after the gap, got %d", sel.Index[10])
	}

	all := Reject(rec, nil)
	if all.Len() != 31 {
		t.Errorf("Expected every sample without intervals, got %d", all.Len())
	}
}

func TestDetrend(t *testing.T) {
	t.Run("removes line", func(t *testing.T) {
		tm := TimeIndex(50, 10)
		x := make([]float64, len(tm))
		for i, v := range tm {
			x[i] = 3 + 2*v
		}
		for i, v := range Detrend(tm, x) {
			if math.Abs(v) > 1e-9 {
				t.Fatalf("residual %d = %v, want 0", i, v)
			}
		}
	})

	t.Run("single point", func(t *testing.T) {
		got := Detrend([]float64{0}, []float64{7})
		if got[0] != 0 {
			t.Errorf("Expected 0, got %v", got[0])
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Detrend(nil, nil); len(got) != 0 {
			t.Errorf("Expected empty result, got %v", got)
		}
	})

	t.Run("degenerate time", func(t *testing.T) {
		got := Detrend([]float64{1, 1, 1}, []float64{1, 2, 3})
		want := []float64{-1, 0, 1}
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestSmooth(t *testing.T) {
	t.Run("constant passes through", func(t *testing.T) {
		x := constant(64, 5)
		got := Smooth(x, 10, DefaultSmoothCutoff)
		if diff := cmp.Diff(x, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("removes fast oscillation", func(t *testing.T) {
		fs := 100.0
		x := make([]float64, 1000)
		for i := range x {
			x[i] = 10 + math.Sin(2*math.Pi*20*float64(i)/fs)
		}
		got := Smooth(x, fs, 1)
		for i := 100; i < 900; i++ {
			if math.Abs(got[i]-10) > 0.05 {
				t.Fatalf("sample %d = %v, want about 10", i, got[i])
			}
		}
	})

	t.Run("invalid cutoff copies input", func(t *testing.T) {
		x := []float64{1, 2, 3}
		got := Smooth(x, 10, 0)
		got[0] = 99
		if x[0] != 1 {
			t.Error("Smooth must not alias its input")
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := Smooth(nil, 10, 1); len(got) != 0 {
			t.Errorf("Expected empty result, got %v", got)
		}
	})
}
