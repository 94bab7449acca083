// Package epoch slices uniformly sampled signals into fixed-duration windows.
package epoch

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMismatchedLengths is returned when timestamps and samples differ in length.
	ErrMismatchedLengths = errors.New("timestamps and samples differ in length")
	// ErrInvalidRate is returned for a non-positive or non-finite sampling rate.
	ErrInvalidRate = errors.New("sampling rate must be positive")
	// ErrInvalidDuration is returned when duration*rate is not a positive whole number of samples.
	ErrInvalidDuration = errors.New("window duration must span a positive whole number of samples")
	// ErrInvalidStride is returned when stride*rate is not a positive whole number of samples.
	ErrInvalidStride = errors.New("window stride must span a positive whole number of samples")
	// ErrNonMonotonic is returned when epoch end indices do not strictly increase.
	ErrNonMonotonic = errors.New("epoch end indices must increase")
	// ErrOutOfRange is returned when an epoch falls outside the signal.
	ErrOutOfRange = errors.New("epoch outside signal bounds")
)

// Signal is an ordered series of samples at a fixed rate, optionally timestamped.
type Signal struct {
	Samples    []float64
	Timestamps []float64 // seconds; nil means index/Rate
	Rate       float64   // Hz
}

// Window is a half-open sample range [Start, End).
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of samples in the window.
func (w Window) Len() int {
	return w.End - w.Start
}

// Validate checks the structural contract of the signal.
func (s Signal) Validate() error {
	if s.Rate <= 0 || math.IsNaN(s.Rate) || math.IsInf(s.Rate, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, s.Rate)
	}
	if s.Timestamps != nil && len(s.Timestamps) != len(s.Samples) {
		return fmt.Errorf("%w: %d timestamps for %d samples", ErrMismatchedLengths, len(s.Timestamps), len(s.Samples))
	}
	return nil
}

// Windows returns the sliding windows of the signal. See Windows.
func (s Signal) Windows(duration, stride float64) ([]Window, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return Windows(len(s.Samples), s.Rate, duration, stride)
}

// Segments returns the sample slices for ws. The slices alias the signal.
func (s Signal) Segments(ws []Window) [][]float64 {
	out := make([][]float64, len(ws))
	for i, w := range ws {
		out[i] = s.Samples[w.Start:w.End]
	}
	return out
}

// Times returns the time values (seconds) of every sample in each window.
func (s Signal) Times(ws []Window) [][]float64 {
	out := make([][]float64, len(ws))
	for i, w := range ws {
		if s.Timestamps != nil {
			out[i] = s.Timestamps[w.Start:w.End]
			continue
		}
		ts := make([]float64, w.Len())
		for j := range ts {
			ts[j] = float64(w.Start+j) / s.Rate
		}
		out[i] = ts
	}
	return out
}

// Windows lays windows of duration seconds over n samples at rate Hz, one every
// stride seconds. Windows that would run past the last sample are dropped, so a
// signal shorter than one window yields no windows and no error.
func Windows(n int, rate, duration, stride float64) ([]Window, error) {
	size, err := samples(duration, rate, ErrInvalidDuration)
	if err != nil {
		return nil, err
	}
	step, err := samples(stride, rate, ErrInvalidStride)
	if err != nil {
		return nil, err
	}

	var out []Window
	for start := 0; start+size <= n; start += step {
		out = append(out, Window{Start: start, End: start + size})
	}
	return out, nil
}

// AtEnds builds disjoint epochs of duration seconds, each ending (exclusive) at
// one of ends. It is used when epoch boundaries come from an external table.
func AtEnds(n int, ends []int, rate, duration float64) ([]Window, error) {
	size, err := samples(duration, rate, ErrInvalidDuration)
	if err != nil {
		return nil, err
	}

	out := make([]Window, 0, len(ends))
	prevEnd := 0
	for i, end := range ends {
		start := end - size
		if start < 0 || end > n {
			return nil, fmt.Errorf("%w: epoch %d spans [%d, %d) of %d samples", ErrOutOfRange, i, start, end, n)
		}
		if i > 0 && start < prevEnd {
			return nil, fmt.Errorf("%w: epoch %d ends at %d after previous end %d", ErrNonMonotonic, i, end, prevEnd)
		}
		out = append(out, Window{Start: start, End: end})
		prevEnd = end
	}
	return out, nil
}

// samples converts seconds to a whole sample count.
func samples(seconds, rate float64, invalid error) (int, error) {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}
	exact := seconds * rate
	rounded := math.Round(exact)
	if rounded < 1 || math.Abs(exact-rounded) > 1e-9*math.Max(1, exact) {
		return 0, fmt.Errorf("%w: %v s at %v Hz", invalid, seconds, rate)
	}
	return int(rounded), nil
}
