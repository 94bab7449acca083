// Package rescore repairs implausibly short sleep and wake runs in an epoch label
// sequence using Webster's rescoring rules and a set of session-level repair passes.
//
// Every function here is a pure transform: the input sequence is cloned, never
// modified, and the output always has the input's length.
package rescore

import (
	"errors"
	"fmt"
	"math"

	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
)

// ErrInvalidEpoch is returned for a non-positive epoch duration.
var ErrInvalidEpoch = errors.New("epoch duration must be positive")

// Rule is one rescoring pass.
type Rule func(label.Sequence) label.Sequence

// Scale converts rule thresholds given in minutes into epoch counts.
type Scale struct {
	EpochSeconds float64
}

// NewScale returns the scale for epochs of the given length.
func NewScale(epochSeconds float64) (Scale, error) {
	if epochSeconds <= 0 || math.IsNaN(epochSeconds) || math.IsInf(epochSeconds, 0) {
		return Scale{}, fmt.Errorf("%w: got %v", ErrInvalidEpoch, epochSeconds)
	}
	return Scale{EpochSeconds: epochSeconds}, nil
}

// ModeS is the scale for 30-second epochs.
func ModeS() Scale {
	return Scale{EpochSeconds: 30}
}

// ModeMinute is the scale for 60-second epochs.
func ModeMinute() Scale {
	return Scale{EpochSeconds: 60}
}

// Epochs returns round(minutes*60/EpochSeconds), never less than one.
func (s Scale) Epochs(minutes float64) int {
	n := int(math.Round(minutes * 60 / s.EpochSeconds))
	return max(n, 1)
}
