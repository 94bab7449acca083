package session

import (
	"github.com/codeGROOVE-dev/sleepwake/pkg/epoch"
	"github.com/codeGROOVE-dev/sleepwake/pkg/features"
	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
	"github.com/codeGROOVE-dev/sleepwake/pkg/orientation"
	"github.com/codeGROOVE-dev/sleepwake/pkg/params"
	"github.com/codeGROOVE-dev/sleepwake/pkg/resultcache"
	"github.com/codeGROOVE-dev/sleepwake/pkg/sleep"
)

// Option configures a Scorer.
type Option func(*OptionHolder)

// WithParams replaces the whole parameter set.
func WithParams(p params.Params) Option {
	return func(o *OptionHolder) {
		o.params = &p
	}
}

// WithMethod overrides the scoring method of the parameter set.
func WithMethod(m features.Method) Option {
	return func(o *OptionHolder) {
		o.method = &m
	}
}

// WithWorkers bounds how many sessions ScoreAll processes at once.
func WithWorkers(n int) Option {
	return func(o *OptionHolder) {
		o.workers = n
	}
}

// WithCache shares a result cache between scorers.
func WithCache(c *resultcache.Cache) Option {
	return func(o *OptionHolder) {
		o.cache = c
	}
}

// WithNoCache disables result caching.
func WithNoCache() Option {
	return func(o *OptionHolder) {
		o.noCache = true
	}
}

// WithWeightedESS selects the run-length weighted ESS variant.
func WithWeightedESS(enabled bool) Option {
	return func(o *OptionHolder) {
		o.weightedESS = enabled
	}
}

// OptionHolder holds configuration options.
type OptionHolder struct {
	params      *params.Params
	method      *features.Method
	cache       *resultcache.Cache
	workers     int
	noCache     bool
	weightedESS bool
}

// Session is one recording. Signal feeds epoch scoring; Vertical and Axis are
// optional raw axes for the ESS segmenter and the orientation detector.
type Session struct {
	ID        string
	Signal    epoch.Signal
	EpochEnds []int // when set, epochs end at these sample indices
	Vertical  []float64
	Axis      []float64
	AxisTimes []float64
}

// Result is the scored timeline of one session.
type Result struct {
	ID          string               `json:"id"`
	Windows     []epoch.Window       `json:"windows"`
	Activity    []float64            `json:"activity"`
	Scores      []float64            `json:"scores"`
	Raw         label.Sequence       `json:"raw"`
	Labels      label.Sequence       `json:"labels"`
	Runs        []label.Run          `json:"runs"`
	Undefined   []int                `json:"undefined,omitempty"` // epochs whose score was NaN
	Segments    []sleep.Segment      `json:"segments,omitempty"`
	Orientation []orientation.Change `json:"orientation,omitempty"`
	Cached      bool                 `json:"cached"`
}
