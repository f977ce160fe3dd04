package fp

import (
	"math"

	"github.com/himanishpuri/behapy/pkg/models"
	"github.com/mjibson/go-dsp/fft"
	"github.com/montanaflynn/stats"
)

// DefaultSmoothCutoff is the low-pass cutoff, in Hz, used by Smooth.
const DefaultSmoothCutoff = 0.1

// Selection is the part of a recording kept after rejection. Index holds
// the positions in the original time index, in ascending order.
type Selection struct {
	Index []int
	Time  []float64
}

// Values picks the selected positions out of a full-length channel.
func (s Selection) Values(channel []float64) []float64 {
	out := make([]float64, len(s.Index))
	for i, idx := range s.Index {
		out[i] = channel[idx]
	}
	return out
}

// Len is the number of kept samples.
func (s Selection) Len() int {
	return len(s.Index)
}

// Reject masks out every sample whose time falls inside an interval.
func Reject(rec *Recording, intervals models.Intervals) Selection {
	sorted := intervals.Sorted()
	sel := Selection{
		Index: make([]int, 0, rec.Len()),
		Time:  make([]float64, 0, rec.Len()),
	}
	for i, t := range rec.Time {
		if sorted.Contains(t) {
			continue
		}
		sel.Index = append(sel.Index, i)
		sel.Time = append(sel.Time, t)
	}
	return sel
}

// Detrend removes the least-squares straight line through (t, x).
// With fewer than two points only the mean is removed.
func Detrend(t, x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	if len(x) < 2 {
		mean, _ := stats.Mean(x)
		for i, v := range x {
			out[i] = v - mean
		}
		return out
	}

	series := make(stats.Series, len(x))
	for i := range x {
		series[i] = stats.Coordinate{X: t[i], Y: x[i]}
	}
	fit, err := stats.LinearRegression(series)
	if err != nil || len(fit) != len(x) || math.IsNaN(fit[0].Y) || math.IsInf(fit[0].Y, 0) {
		// degenerate time axis (all t equal)
		mean, _ := stats.Mean(x)
		for i, v := range x {
			out[i] = v - mean
		}
		return out
	}
	for i, v := range x {
		out[i] = v - fit[i].Y
	}
	return out
}

// Smooth low-pass filters x with a zero-phase brick-wall filter in the
// frequency domain. The signal is mirrored before the transform so the
// implied periodic extension has no jump at the edges.
func Smooth(x []float64, fs, cutoff float64) []float64 {
	n := len(x)
	if n == 0 {
		return []float64{}
	}
	if cutoff <= 0 || fs <= 0 || cutoff >= fs/2 {
		out := make([]float64, n)
		copy(out, x)
		return out
	}

	padded := make([]float64, 2*n)
	copy(padded, x)
	for i := 0; i < n; i++ {
		padded[2*n-1-i] = x[i]
	}

	freq := fft.FFTReal(padded)
	m := len(freq)
	for k := 1; k < m; k++ {
		bin := k
		if k > m/2 {
			bin = m - k
		}
		if float64(bin)*fs/float64(m) > cutoff {
			freq[k] = 0
		}
	}

	filtered := fft.IFFT(freq)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = real(filtered[i])
	}
	return out
}
