// Package params holds the tunable parameter set of the scoring pipeline and
// loads it from YAML.
package params

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/sleepwake/pkg/features"
	"github.com/codeGROOVE-dev/sleepwake/pkg/orientation"
	"github.com/codeGROOVE-dev/sleepwake/pkg/rescore"
	"github.com/codeGROOVE-dev/sleepwake/pkg/sleep"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid parameters")

// Params is the full parameter set.
type Params struct {
	Epoch       Epoch                `yaml:"epoch"`
	Scoring     Scoring              `yaml:"scoring"`
	Rescore     Rescore              `yaml:"rescore"`
	ESS         sleep.Config         `yaml:"ess"`
	Orientation orientation.Detector `yaml:"orientation"`
}

// Epoch controls how the raw signal is windowed.
type Epoch struct {
	WindowDuration float64 `yaml:"window_duration"` // seconds
	WindowInterval float64 `yaml:"window_interval"` // seconds between window starts
	SamplingRate   float64 `yaml:"sampling_rate"`   // Hz, used when a signal carries none
}

// Scoring selects the linear model and the per-epoch activity value.
type Scoring struct {
	Method string   `yaml:"method"`
	Metric string   `yaml:"metric"`
	Cutoff *float64 `yaml:"cutoff,omitempty"` // overrides the model cutoff
}

// Rescore controls the rule engine.
type Rescore struct {
	Webster      bool     `yaml:"webster"`
	EpochSeconds float64  `yaml:"epoch_seconds,omitempty"` // 0 means the window interval
	Before       []string `yaml:"before,omitempty"`
	After        []string `yaml:"after,omitempty"`
}

// Default returns 30-second epochs scored with Cole-Kripke on 10 Hz data,
// Webster's rules on, no repair passes, and the published ESS and orientation
// tunables.
func Default() Params {
	return Params{
		Epoch: Epoch{
			WindowDuration: 30,
			WindowInterval: 30,
			SamplingRate:   10,
		},
		Scoring: Scoring{
			Method: features.Cole.String(),
			Metric: features.MetricMAD.String(),
		},
		Rescore:     Rescore{Webster: true},
		ESS:         sleep.DefaultConfig(),
		Orientation: orientation.DefaultDetector(60),
	}
}

// Parse overlays YAML onto Default and validates the result.
func Parse(data []byte) (Params, error) {
	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("parsing parameters: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Load reads parameters from a YAML file. A missing file yields Default.
func Load(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Params{}, fmt.Errorf("reading parameters: %w", err)
	}
	return Parse(data)
}

// Marshal renders p as YAML.
func (p Params) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// Validate reports the first invalid field.
func (p Params) Validate() error {
	if p.Epoch.WindowDuration <= 0 {
		return fmt.Errorf("%w: epoch.window_duration must be positive, got %v", ErrInvalid, p.Epoch.WindowDuration)
	}
	if p.Epoch.WindowInterval <= 0 {
		return fmt.Errorf("%w: epoch.window_interval must be positive, got %v", ErrInvalid, p.Epoch.WindowInterval)
	}
	if p.Epoch.SamplingRate <= 0 {
		return fmt.Errorf("%w: epoch.sampling_rate must be positive, got %v", ErrInvalid, p.Epoch.SamplingRate)
	}
	if _, err := p.Method(); err != nil {
		return fmt.Errorf("%w: scoring.method: %w", ErrInvalid, err)
	}
	if _, err := p.Metric(); err != nil {
		return fmt.Errorf("%w: scoring.metric: %w", ErrInvalid, err)
	}
	if p.Rescore.EpochSeconds < 0 {
		return fmt.Errorf("%w: rescore.epoch_seconds must not be negative, got %v", ErrInvalid, p.Rescore.EpochSeconds)
	}
	if _, err := p.Pipeline(); err != nil {
		return fmt.Errorf("%w: rescore: %w", ErrInvalid, err)
	}
	if err := p.ESS.Validate(); err != nil {
		return fmt.Errorf("%w: ess: %w", ErrInvalid, err)
	}
	if p.Orientation.Seconds <= 0 || p.Orientation.SampleRate <= 0 {
		return fmt.Errorf("%w: orientation window of %d s at %v Hz", ErrInvalid, p.Orientation.Seconds, p.Orientation.SampleRate)
	}
	return nil
}

// Method returns the configured scoring method.
func (p Params) Method() (features.Method, error) {
	return features.ParseMethod(p.Scoring.Method)
}

// Metric returns the configured activity metric.
func (p Params) Metric() (features.Metric, error) {
	return features.ParseMetric(p.Scoring.Metric)
}

// Scale returns the rescoring scale for the configured epoch spacing.
func (p Params) Scale() (rescore.Scale, error) {
	secs := p.Rescore.EpochSeconds
	if secs == 0 {
		secs = p.Epoch.WindowInterval
	}
	return rescore.NewScale(secs)
}

// Pipeline resolves the configured rescoring passes.
func (p Params) Pipeline() (rescore.Pipeline, error) {
	scale, err := p.Scale()
	if err != nil {
		return rescore.Pipeline{}, err
	}
	pl, err := rescore.NewPipeline(scale, repairs(p.Rescore.Before), repairs(p.Rescore.After))
	if err != nil {
		return rescore.Pipeline{}, err
	}
	pl.NoWebster = !p.Rescore.Webster
	return pl, nil
}

func repairs(names []string) []rescore.Repair {
	out := make([]rescore.Repair, len(names))
	for i, n := range names {
		out[i] = rescore.Repair(n)
	}
	return out
}
