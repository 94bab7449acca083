// Package sleep segments a vertical accelerometer axis into sleep and wake
// periods using the ESS family of actigraphy rules: one-second movement blocks,
// long low-movement runs as sleep, and short wake gaps folded into their neighbours.
package sleep

import (
	"errors"
	"fmt"

	"github.com/codeGROOVE-dev/sleepwake/pkg/epoch"
	"github.com/codeGROOVE-dev/sleepwake/pkg/features"
	"github.com/codeGROOVE-dev/sleepwake/pkg/runs"
)

// ErrInvalidConfig is returned when a Config cannot produce at least one block.
var ErrInvalidConfig = errors.New("invalid ESS configuration")

// Config holds the ESS tunables. SampleRate is both the axis rate in Hz and the
// block size in samples. SleepThreshold is in raw samples.
type Config struct {
	SampleRate        int     `yaml:"sample_rate" json:"sample_rate"`
	MovementThreshold float64 `yaml:"movement_threshold" json:"movement_threshold"`
	SleepThreshold    int     `yaml:"sleep_threshold" json:"sleep_threshold"`
	RLThreshold       float64 `yaml:"rl_threshold" json:"rl_threshold"`
}

// DefaultConfig returns 10 Hz blocks, a 0.2 movement cutoff and 10-minute sleep runs.
func DefaultConfig() Config {
	return Config{
		SampleRate:        10,
		MovementThreshold: 0.2,
		SleepThreshold:    6000,
		RLThreshold:       0.95,
	}
}

// Validate checks that the config yields whole, positive block counts.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.SleepThreshold < c.SampleRate {
		return fmt.Errorf("%w: sleep threshold %d shorter than one block of %d samples",
			ErrInvalidConfig, c.SleepThreshold, c.SampleRate)
	}
	return nil
}

// thresholdBlocks is the minimum sleep run in blocks.
func (c Config) thresholdBlocks() int {
	return c.SleepThreshold / c.SampleRate
}

// Segment is a sleep or wake period in raw-sample units. End is exclusive.
type Segment struct {
	Start int  `json:"start"`
	End   int  `json:"end"`
	Sleep bool `json:"sleep"`
}

// Len returns the number of samples in the segment.
func (s Segment) Len() int {
	return s.End - s.Start
}

// BlockStd returns the population standard deviation of each full,
// non-overlapping block of rate samples.
func BlockStd(vertical []float64, rate int) ([]float64, error) {
	ws, err := epoch.Windows(len(vertical), float64(rate), 1, 1)
	if err != nil {
		return nil, fmt.Errorf("blocking vertical axis: %w", err)
	}
	segs := epoch.Signal{Samples: vertical, Rate: float64(rate)}.Segments(ws)
	out := make([]float64, len(segs))
	for i, seg := range segs {
		out[i] = features.Stats(seg).Std
	}
	return out, nil
}

// lowMovement thresholds the block deviations.
func lowMovement(vertical []float64, cfg Config) ([]bool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sigma, err := BlockStd(vertical, cfg.SampleRate)
	if err != nil {
		return nil, err
	}
	low := make([]bool, len(sigma))
	for i, s := range sigma {
		low[i] = s < cfg.MovementThreshold
	}
	return low, nil
}

// Accel is the base ESS variant: every low-movement run of at least
// SleepThreshold samples is sleep, everything else is wake.
func Accel(vertical []float64, cfg Config) ([]Segment, error) {
	low, err := lowMovement(vertical, cfg)
	if err != nil {
		return nil, err
	}

	thr := cfg.thresholdBlocks()
	var blocks []Segment
	for _, r := range runs.Encode(low) {
		blocks = append(blocks, Segment{Start: r.Start, End: r.End(), Sleep: r.Value && r.Length >= thr})
	}
	return finish(blocks, thr, cfg.SampleRate, len(vertical)), nil
}

// AccelWeighted is the run-length weighted ESS variant. Low/high runs are
// grouped into local blocks of SleepThreshold samples; within a group every run
// is weighted by its length over the group's average run length, and the mean
// weighted low-movement indicator becomes the group's score. Runs that alone
// span the threshold score 1 when low and 0 when not. Blocks scoring at least
// RLThreshold are sleep.
func AccelWeighted(vertical []float64, cfg Config) ([]Segment, error) {
	low, err := lowMovement(vertical, cfg)
	if err != nil {
		return nil, err
	}

	thr := cfg.thresholdBlocks()
	scores := runLengthScores(runs.Encode(low), thr)

	sleepy := make([]bool, len(scores))
	for i, s := range scores {
		sleepy[i] = s >= cfg.RLThreshold
	}

	var blocks []Segment
	for _, r := range runs.Encode(sleepy) {
		blocks = append(blocks, Segment{Start: r.Start, End: r.End(), Sleep: r.Value})
	}
	return finish(blocks, thr, cfg.SampleRate, len(vertical)), nil
}

// runLengthScores assigns every block the score of the local group it falls in.
func runLengthScores(rs []runs.Run[bool], thr int) []float64 {
	var scores []float64
	var group []runs.Run[bool]
	size := 0

	flush := func() {
		if len(group) == 0 {
			return
		}
		arl := float64(size) / float64(len(group))
		weighted := 0.0
		for _, r := range group {
			if r.Value {
				weighted += float64(r.Length) / arl
			}
		}
		score := weighted / float64(len(group))
		for range size {
			scores = append(scores, score)
		}
		group, size = group[:0], 0
	}

	for _, r := range rs {
		if r.Length >= thr {
			flush()
			score := 0.0
			if r.Value {
				score = 1
			}
			for range r.Length {
				scores = append(scores, score)
			}
			continue
		}
		group = append(group, r)
		size += r.Length
		if size >= thr {
			flush()
		}
	}
	flush()
	return scores
}

// finish turns tagged block runs into sample segments: neighbours with the same
// tag are coalesced, wake shorter than a third of the sleep threshold is folded
// into the segment before it, and the result is rescaled to samples so that it
// covers [0, n).
func finish(blocks []Segment, thr, rate, n int) []Segment {
	if n == 0 {
		return nil
	}
	if len(blocks) == 0 {
		return []Segment{{Start: 0, End: n}}
	}

	minWake := thr / 3
	var merged []Segment
	for _, b := range coalesce(blocks) {
		if !b.Sleep && b.Len() < minWake && len(merged) > 0 {
			merged[len(merged)-1].End = b.End
			continue
		}
		merged = append(merged, b)
	}
	merged = coalesce(merged)

	out := make([]Segment, len(merged))
	for i, s := range merged {
		out[i] = Segment{Start: s.Start * rate, End: s.End * rate, Sleep: s.Sleep}
	}
	// Samples past the last full block belong to the final segment.
	out[len(out)-1].End = n
	return out
}

// coalesce joins adjacent segments sharing a tag and drops empty ones.
func coalesce(segs []Segment) []Segment {
	var out []Segment
	for _, s := range segs {
		if s.Len() <= 0 {
			continue
		}
		if len(out) > 0 && out[len(out)-1].Sleep == s.Sleep {
			out[len(out)-1].End = s.End
			continue
		}
		out = append(out, s)
	}
	return out
}
