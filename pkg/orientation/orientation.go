// Package orientation finds where a body-worn sensor changes orientation by
// scanning the windowed variance and mean of one accelerometer axis.
package orientation

import (
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/sleepwake/pkg/epoch"
	"github.com/codeGROOVE-dev/sleepwake/pkg/features"
)

// Change is one stable orientation interval in window-seconds units: a change
// accepted at window i and stabilizing at window j is [i*Seconds, j*Seconds].
type Change struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result holds the detected changes plus the windowed series they came from.
type Result struct {
	Changes  []Change
	Variance []float64
	Mean     []float64
	Times    []float64
}

// Detector holds the scan tunables. Seconds is the window width, SampleRate the
// axis rate in Hz.
type Detector struct {
	Seconds           int     `yaml:"seconds" json:"seconds"`
	SampleRate        float64 `yaml:"sample_rate" json:"sample_rate"`
	MinDist           int     `yaml:"min_dist" json:"min_dist"`
	MinMeanDiff       float64 `yaml:"min_mean_diff" json:"min_mean_diff"`
	MinDuration       int     `yaml:"min_duration" json:"min_duration"`
	VarianceThreshold float64 `yaml:"variance_threshold" json:"variance_threshold"`
	StableVariance    float64 `yaml:"stable_variance" json:"stable_variance"`
}

// DefaultDetector returns the published tunables for the given window width.
func DefaultDetector(seconds int) Detector {
	return Detector{
		Seconds:           seconds,
		SampleRate:        10,
		MinDist:           5,
		MinMeanDiff:       1,
		MinDuration:       7,
		VarianceThreshold: 5,
		StableVariance:    1,
	}
}

// Windowed returns the population variance and mean of each full, non-overlapping
// window of samplesPerWindow samples. A trailing partial window is dropped.
func Windowed(data []float64, samplesPerWindow int) (variance, mean []float64, err error) {
	// At a rate of 1 Hz, seconds and samples coincide.
	ws, err := epoch.Windows(len(data), 1, float64(samplesPerWindow), float64(samplesPerWindow))
	if err != nil {
		return nil, nil, fmt.Errorf("windowing %d samples: %w", len(data), err)
	}
	variance, mean = summarize(epoch.Signal{Samples: data, Rate: 1}.Segments(ws))
	return variance, mean, nil
}

func summarize(segments [][]float64) (variance, mean []float64) {
	variance = make([]float64, len(segments))
	mean = make([]float64, len(segments))
	for i, seg := range segments {
		st := features.Stats(seg)
		variance[i] = st.Std * st.Std
		mean[i] = st.Mean
	}
	return variance, mean
}

// Detect scans data for orientation changes. timestamps may be nil; when given
// it must match data in length.
func (d Detector) Detect(data, timestamps []float64) (*Result, error) {
	if d.Seconds <= 0 {
		return nil, fmt.Errorf("%w: window of %d seconds", epoch.ErrInvalidDuration, d.Seconds)
	}
	sig := epoch.Signal{Samples: data, Timestamps: timestamps, Rate: d.SampleRate}
	ws, err := sig.Windows(float64(d.Seconds), float64(d.Seconds))
	if err != nil {
		return nil, fmt.Errorf("windowing orientation axis: %w", err)
	}

	res := &Result{Times: make([]float64, len(ws))}
	res.Variance, res.Mean = summarize(sig.Segments(ws))
	for k, w := range ws {
		if timestamps != nil {
			res.Times[k] = timestamps[w.Start]
			continue
		}
		res.Times[k] = float64(k * d.Seconds)
	}

	st := state{previousMean: 1000}
	for i := 0; i < len(res.Variance); {
		var out outcome
		st, out = d.step(st, i, res.Variance, res.Mean)
		switch {
		case out.change != nil:
			res.Changes = append(res.Changes, *out.change)
		case out.extend:
			res.Changes[len(res.Changes)-1].End = out.end
		}
		i = out.next
	}
	return res, nil
}

// state is what the scan carries from one window to the next.
type state struct {
	previousChange int
	previousMean   float64
	recorded       bool
}

// outcome is the effect of one step: at most one new change or one extension of
// the last change, and the window to visit next.
type outcome struct {
	change *Change
	extend bool
	end    int
	next   int
}

// step visits window i. A quiet window far enough from the previous change whose
// mean moved by at least MinMeanDiff opens a change if it stays quiet for
// MinDuration windows. A quiet window whose mean is within MinMeanDiff of the
// previous one extends the last change instead.
func (d Detector) step(st state, i int, variance, mean []float64) (state, outcome) {
	out := outcome{next: i + 1}
	if variance[i] >= d.VarianceThreshold {
		return st, out
	}

	diff := math.Abs(st.previousMean - mean[i])
	switch {
	case i >= st.previousChange+d.MinDist:
		if diff < d.MinMeanDiff {
			return st, out
		}
		st.previousMean = mean[i]
		j := d.settle(variance, i)
		if j-i < d.MinDuration {
			return st, out
		}
		st.previousChange = j
		st.recorded = true
		out.change = &Change{Start: i * d.Seconds, End: j * d.Seconds}
		out.next = j + 1
	case diff <= d.MinMeanDiff:
		if !st.recorded {
			return st, out
		}
		j := d.settle(variance, i)
		st.previousChange = j
		st.previousMean = mean[i]
		out.extend = true
		out.end = j * d.Seconds
	}
	return st, out
}

// settle returns the first window at or after i whose variance rises above
// StableVariance, or the last window when none does.
func (d Detector) settle(variance []float64, i int) int {
	for j := i; j < len(variance); j++ {
		if variance[j] > d.StableVariance {
			return j
		}
	}
	return len(variance) - 1
}
