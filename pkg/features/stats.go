// Package features computes per-epoch statistics and the linear sleep/wake scores
// (Cole, Oakley, Sadeh and their RMS variants) built on them.
package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrIndexOutOfRange is returned when a peak or trough index lies outside the epoch.
var ErrIndexOutOfRange = errors.New("index outside epoch")

// EpochStats summarizes one epoch. Every field is NaN for an empty epoch.
type EpochStats struct {
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	MAD     float64 `json:"mad"`      // mean absolute deviation from the mean
	Max     float64 `json:"max"`
	DiffSum float64 `json:"diff_sum"` // sum of absolute first differences
	RMS     float64 `json:"rms"`
}

// Metric selects which statistic stands for the activity of an epoch.
type Metric int

const (
	MetricMAD Metric = iota
	MetricMax
	MetricDiffSum
	MetricRMS
)

func (m Metric) String() string {
	switch m {
	case MetricMAD:
		return "mad"
	case MetricMax:
		return "max"
	case MetricDiffSum:
		return "diff_sum"
	case MetricRMS:
		return "rms"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric maps a metric name to its Metric.
func ParseMetric(name string) (Metric, error) {
	for _, m := range []Metric{MetricMAD, MetricMax, MetricDiffSum, MetricRMS} {
		if m.String() == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown activity metric %q", name)
}

// Pick returns the statistic selected by m.
func (s EpochStats) Pick(m Metric) float64 {
	switch m {
	case MetricMax:
		return s.Max
	case MetricDiffSum:
		return s.DiffSum
	case MetricRMS:
		return s.RMS
	default:
		return s.MAD
	}
}

// Stats computes the summary statistics of x.
func Stats(x []float64) EpochStats {
	if len(x) == 0 {
		nan := math.NaN()
		return EpochStats{Mean: nan, Std: nan, MAD: nan, Max: nan, DiffSum: nan, RMS: nan}
	}

	n := float64(len(x))
	mean, std := popMeanStd(x)

	dev := make([]float64, len(x))
	copy(dev, x)
	floats.AddConst(-mean, dev)

	diffSum := 0.0
	if len(x) > 1 {
		diff := make([]float64, len(x)-1)
		floats.SubTo(diff, x[1:], x[:len(x)-1])
		diffSum = floats.Norm(diff, 1)
	}

	return EpochStats{
		Mean:    mean,
		Std:     std,
		MAD:     floats.Norm(dev, 1) / n,
		Max:     floats.Max(x),
		DiffSum: diffSum,
		RMS:     floats.Norm(x, 2) / math.Sqrt(n),
	}
}

// popMeanStd is stat.PopMeanStdDev with a zero deviation for a single sample.
func popMeanStd(x []float64) (mean, std float64) {
	if len(x) == 1 {
		return x[0], 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// Activity reduces each segment to the statistic selected by m.
func Activity(segments [][]float64, m Metric) []float64 {
	out := make([]float64, len(segments))
	for i, seg := range segments {
		out[i] = Stats(seg).Pick(m)
	}
	return out
}

// ZeroCrossings counts the sign changes of the de-meaned epoch. Zero samples
// count as negative.
func ZeroCrossings(x []float64) int {
	if len(x) < 2 {
		return 0
	}
	mean := stat.Mean(x, nil)

	crossings := 0
	prev := x[0]-mean > 0
	for _, v := range x[1:] {
		positive := v-mean > 0
		if positive != prev {
			crossings++
		}
		prev = positive
	}
	return crossings
}

// ThresholdCrossings counts the rising edges of x above threshold. A series that
// starts above the threshold counts as one edge.
func ThresholdCrossings(x []float64, threshold float64) int {
	edges := 0
	above := false
	for _, v := range x {
		now := v > threshold
		if now && !above {
			edges++
		}
		above = now
	}
	return edges
}

// Amplitudes pairs peaks with troughs and returns x[peak]-x[trough] for every
// pair. When the counts differ, the earliest surplus entries are dropped so the
// two lists line up from the end.
func Amplitudes(x []float64, peaks, troughs []int) ([]float64, error) {
	for _, idx := range append(append([]int(nil), peaks...), troughs...) {
		if idx < 0 || idx >= len(x) {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, idx, len(x))
		}
	}

	if extra := len(peaks) - len(troughs); extra > 0 {
		peaks = peaks[extra:]
	} else if extra < 0 {
		troughs = troughs[-extra:]
	}

	out := make([]float64, len(peaks))
	for i := range peaks {
		out[i] = x[peaks[i]] - x[troughs[i]]
	}
	return out, nil
}

// Amplitude is the mean peak-to-trough difference, NaN when nothing pairs up.
func Amplitude(x []float64, peaks, troughs []int) (float64, error) {
	amps, err := Amplitudes(x, peaks, troughs)
	if err != nil {
		return math.NaN(), err
	}
	return nanMean(amps), nil
}

// HeartRate returns beats per second from peak times in seconds, skipping
// intervals that are NaN, infinite or not positive. NaN if no interval survives.
func HeartRate(peakTimes []float64) float64 {
	m := nanMean(intervals(peakTimes))
	if math.IsNaN(m) {
		return m
	}
	return 1 / m
}

// HeartRateVariability is the population standard deviation of the valid
// inter-peak intervals, NaN if none survive.
func HeartRateVariability(peakTimes []float64) float64 {
	return nanStd(intervals(peakTimes))
}

func intervals(times []float64) []float64 {
	if len(times) < 2 {
		return nil
	}
	out := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		dt := times[i] - times[i-1]
		if math.IsNaN(dt) || math.IsInf(dt, 0) || dt <= 0 {
			continue
		}
		out = append(out, dt)
	}
	return out
}

func withoutNaN(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func nanMean(x []float64) float64 {
	valid := withoutNaN(x)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

func nanStd(x []float64) float64 {
	valid := withoutNaN(x)
	if len(valid) == 0 {
		return math.NaN()
	}
	_, std := popMeanStd(valid)
	return std
}
