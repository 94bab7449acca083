package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
)

// ErrFeatureDimension is returned when a feature vector has the wrong length for its model.
var ErrFeatureDimension = errors.New("feature vector length does not match model")

// Method names a published linear scoring rule.
type Method int

const (
	Cole Method = iota
	ColeRMS
	Oakley
	OakleyRMS
	Sadeh
)

var methodNames = map[Method]string{
	Cole:      "cole",
	ColeRMS:   "cole_rms",
	Oakley:    "oakley",
	OakleyRMS: "oakley_rms",
	Sadeh:     "sadeh",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod maps a method name to its Method.
func ParseMethod(name string) (Method, error) {
	for m, n := range methodNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown scoring method %q", name)
}

// Model is a fixed linear discriminant: score = Scale*dot(Coefficients, f) + Offset.
type Model struct {
	Coefficients []float64
	Scale        float64
	Offset       float64
	// Cutoff separates sleep from wake.
	Cutoff float64
	// SleepAtOrAbove is true when scores >= Cutoff mean sleep (Sadeh); otherwise
	// scores above Cutoff mean wake.
	SleepAtOrAbove bool
	// Lag is how many epochs before the scored one the window reaches back.
	Lag int
}

// Weights and cutoffs follow the published rules; the RMS variants take the
// root-mean-square epoch activity instead of counts.
var models = map[Method]Model{
	Cole: {
		Coefficients: []float64{1.06, 0.54, 0.58, 0.76, 2.3, 0.74, 0.67},
		Scale:        0.0033,
		Cutoff:       1,
		Lag:          4,
	},
	ColeRMS: {
		Coefficients: []float64{404, 598, 326, 441, 1408, 508, 350},
		Scale:        0.00001,
		Cutoff:       1,
		Lag:          4,
	},
	Oakley: {
		Coefficients: []float64{0.04, 0.2, 2.0, 0.2, 0.04},
		Scale:        1,
		Cutoff:       40,
		Lag:          2,
	},
	OakleyRMS: {
		Coefficients: []float64{0.04, 0.2, 2.0, 0.2, 0.04},
		Scale:        1,
		Cutoff:       0.5,
		Lag:          2,
	},
	Sadeh: {
		// mean(A-5..A+5), NAT, SD(A-5..A0), ln(A0+1)
		Coefficients:   []float64{-0.065, -1.08, -0.056, -0.703},
		Scale:          1,
		Offset:         7.601,
		Cutoff:         0,
		SleepAtOrAbove: true,
		Lag:            5,
	},
}

// ModelFor returns the model of m.
func ModelFor(m Method) (Model, error) {
	model, ok := models[m]
	if !ok {
		return Model{}, fmt.Errorf("no model for %v", m)
	}
	return model, nil
}

// Score applies the model of m to one feature vector. A NaN feature yields NaN.
func Score(m Method, features []float64) (float64, error) {
	model, err := ModelFor(m)
	if err != nil {
		return math.NaN(), err
	}
	if len(features) != len(model.Coefficients) {
		return math.NaN(), fmt.Errorf("%w: %v wants %d, got %d", ErrFeatureDimension, m, len(model.Coefficients), len(features))
	}
	return model.Scale*floats.Dot(features, model.Coefficients) + model.Offset, nil
}

// Classify turns a score into a label. The bool is false for a NaN score, which
// is reported as Wake.
func Classify(m Method, score float64) (label.Label, bool) {
	model, err := ModelFor(m)
	if err != nil || math.IsNaN(score) {
		return label.Wake, false
	}
	return classify(model, model.Cutoff, score), true
}

func classify(model Model, cutoff, score float64) label.Label {
	if model.SleepAtOrAbove {
		if score >= cutoff {
			return label.Sleep
		}
		return label.Wake
	}
	if score > cutoff {
		return label.Wake
	}
	return label.Sleep
}

// Features builds the predictor vector of epoch i from the per-epoch activity
// series. Cole and Oakley windows are zero padded past either end of the
// record; the Sadeh statistics use the in-range part of their windows.
func Features(m Method, activity []float64, i int) ([]float64, error) {
	model, err := ModelFor(m)
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(activity) {
		return nil, fmt.Errorf("%w: epoch %d of %d", ErrIndexOutOfRange, i, len(activity))
	}

	if m == Sadeh {
		return sadehFeatures(activity, i), nil
	}

	out := make([]float64, len(model.Coefficients))
	for k := range out {
		j := i - model.Lag + k
		if j >= 0 && j < len(activity) {
			out[k] = activity[j]
		}
	}
	return out, nil
}

func sadehFeatures(activity []float64, i int) []float64 {
	lo, hi := max(i-5, 0), min(i+6, len(activity))
	window := activity[lo:hi]

	nat := 0.0
	for _, a := range window {
		if a >= 50 && a < 100 {
			nat++
		}
	}

	return []float64{
		nanMean(window),
		nat,
		nanStd(activity[lo : i+1]),
		math.Log(activity[i] + 1),
	}
}

// ScoreSeries scores every epoch of the activity series.
func ScoreSeries(m Method, activity []float64) ([]float64, error) {
	out := make([]float64, len(activity))
	for i := range activity {
		f, err := Features(m, activity, i)
		if err != nil {
			return nil, err
		}
		if out[i], err = Score(m, f); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LabelSeries classifies every score. A non-nil cutoff replaces the model's
// default. NaN scores become Wake; the second return lists their indices.
func LabelSeries(m Method, scores []float64, cutoff *float64) (label.Sequence, []int, error) {
	model, err := ModelFor(m)
	if err != nil {
		return nil, nil, err
	}
	c := model.Cutoff
	if cutoff != nil {
		c = *cutoff
	}

	seq := make(label.Sequence, len(scores))
	var undefined []int
	for i, s := range scores {
		if math.IsNaN(s) {
			seq[i] = label.Wake
			undefined = append(undefined, i)
			continue
		}
		seq[i] = classify(model, c, s)
	}
	return seq, undefined, nil
}
