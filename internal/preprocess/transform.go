// Package preprocess turns raw fibre photometry recordings into dff series
// using curated rejection intervals, and persists the results.
package preprocess

import (
	"math"

	"github.com/himanishpuri/behapy/internal/fp"
	"github.com/himanishpuri/behapy/pkg/models"
)

// DerivedSignal is a series aligned to a recording's full time index where
// each position is either set or explicitly unset.
type DerivedSignal struct {
	Name   string
	Time   []float64
	Values []float64
	Set    []bool
}

// NewDerivedSignal returns an all-unset series over time.
func NewDerivedSignal(name string, time []float64) *DerivedSignal {
	d := &DerivedSignal{
		Name:   name,
		Time:   make([]float64, len(time)),
		Values: make([]float64, len(time)),
		Set:    make([]bool, len(time)),
	}
	copy(d.Time, time)
	for i := range d.Values {
		d.Values[i] = math.NaN()
	}
	return d
}

// At returns the value at position i and whether it is set.
func (d *DerivedSignal) At(i int) (float64, bool) {
	if !d.Set[i] {
		return 0, false
	}
	return d.Values[i], true
}

// Assign sets position i.
func (d *DerivedSignal) Assign(i int, v float64) {
	d.Values[i] = v
	d.Set[i] = true
}

// Count is the number of set positions.
func (d *DerivedSignal) Count() int {
	n := 0
	for _, ok := range d.Set {
		if ok {
			n++
		}
	}
	return n
}

// Rows returns [time, value] pairs for the set positions, ordered by time.
func (d *DerivedSignal) Rows() [][2]float64 {
	rows := make([][2]float64, 0, d.Count())
	for i, ok := range d.Set {
		if ok {
			rows = append(rows, [2]float64{d.Time[i], d.Values[i]})
		}
	}
	return rows
}

// Transform computes dff for rec. The signal channel is restricted to the
// non-rejected samples, detrended, and divided by a smoothed copy of the
// same raw selection.
//
// A robust regression against the isosbestic channel was tried first but
// the fit was not good enough; detrend and divide by the smoothed signal
// instead. Smooth the raw selection, not the detrended values.
func Transform(rec *fp.Recording, intervals models.Intervals, smoothCutoff float64) *DerivedSignal {
	dff := NewDerivedSignal("dff", rec.Time)

	sel := fp.Reject(rec, intervals)
	if sel.Len() == 0 {
		return dff
	}

	raw := sel.Values(rec.Signal())
	detrended := fp.Detrend(sel.Time, raw)
	smoothed := fp.Smooth(raw, rec.Attrs.Fs, smoothCutoff)

	for i, idx := range sel.Index {
		dff.Assign(idx, detrended[i]/smoothed[i])
	}
	return dff
}
