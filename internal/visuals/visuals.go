// Package visuals prepares photometry traces for display: decimated traces
// for plotting and spectrogram images for spotting artefacts.
package visuals

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/eligwz/spectrogram"
	"github.com/montanaflynn/stats"
)

var ErrTooShort = errors.New("signal too short for spectrogram")

// Decimate reduces a trace to at most maxPoints samples. Each bucket keeps
// its minimum and maximum, in time order, so spikes that a curator needs to
// reject stay visible.
func Decimate(t, x []float64, maxPoints int) ([]float64, []float64) {
	n := len(x)
	if maxPoints <= 0 || n <= maxPoints || maxPoints < 2 {
		return append([]float64(nil), t...), append([]float64(nil), x...)
	}

	buckets := maxPoints / 2
	outT := make([]float64, 0, 2*buckets)
	outX := make([]float64, 0, 2*buckets)
	for b := 0; b < buckets; b++ {
		lo := b * n / buckets
		hi := (b + 1) * n / buckets
		if hi <= lo {
			continue
		}
		seg := x[lo:hi]
		minV, _ := stats.Min(seg)
		maxV, _ := stats.Max(seg)
		iMin, iMax := lo+indexOf(seg, minV), lo+indexOf(seg, maxV)
		if iMin > iMax {
			iMin, iMax = iMax, iMin
		}
		outT = append(outT, t[iMin])
		outX = append(outX, x[iMin])
		if iMax != iMin {
			outT = append(outT, t[iMax])
			outX = append(outX, x[iMax])
		}
	}
	return outT, outX
}

func indexOf(x []float64, v float64) int {
	for i, y := range x {
		if y == v {
			return i
		}
	}
	return 0
}

// SpectrogramOptions controls the rendered image.
type SpectrogramOptions struct {
	Width  int
	Height int // also the number of frequency bins
	Log    bool
}

// DefaultSpectrogramOptions returns a 1024x256 linear-magnitude image.
func DefaultSpectrogramOptions() SpectrogramOptions {
	return SpectrogramOptions{Width: 1024, Height: 256}
}

// Normalize removes the mean of x and scales it into [-1, 1]. Photometry
// traces sit on a large DC offset that would otherwise swamp the image.
func Normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	mean, _ := stats.Mean(x)
	peak := 0.0
	for i, v := range x {
		out[i] = v - mean
		peak = math.Max(peak, math.Abs(out[i]))
	}
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

// RenderSpectrogram draws the spectrogram of x, sampled at fs Hz, and
// encodes it as PNG to w.
func RenderSpectrogram(w io.Writer, x []float64, fs float64, opts SpectrogramOptions) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultSpectrogramOptions()
	}
	if len(x) < 2*opts.Height {
		return fmt.Errorf("%d samples for %d bins: %w", len(x), opts.Height, ErrTooShort)
	}
	rate := uint32(math.Round(fs))
	if rate == 0 {
		return fmt.Errorf("invalid sampling frequency %g", fs)
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, opts.Width, opts.Height))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	spectrogram.Drawfft(
		img,
		Normalize(x),
		rate,
		uint32(opts.Height),
		false, // hamming window
		false, // fft
		true,  // magnitude
		opts.Log,
	)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding spectrogram: %w", err)
	}
	return nil
}
