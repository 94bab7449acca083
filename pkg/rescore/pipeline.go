package rescore

import (
	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
)

// Pipeline runs optional repair passes around Webster's rules.
type Pipeline struct {
	Before    []Rule
	After     []Rule
	Scale     Scale
	NoWebster bool // run only the repair passes
}

// NewPipeline resolves the named repair passes for the given scale.
func NewPipeline(scale Scale, before, after []Repair) (Pipeline, error) {
	p := Pipeline{Scale: scale}
	for _, name := range before {
		r, err := scale.Repair(name)
		if err != nil {
			return Pipeline{}, err
		}
		p.Before = append(p.Before, r)
	}
	for _, name := range after {
		r, err := scale.Repair(name)
		if err != nil {
			return Pipeline{}, err
		}
		p.After = append(p.After, r)
	}
	return p, nil
}

// Apply runs Before, then Webster, then After, strictly in that order.
func (p Pipeline) Apply(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	for _, r := range p.Before {
		out = r(out)
	}
	if !p.NoWebster {
		out = p.Scale.Webster(out)
	}
	for _, r := range p.After {
		out = r(out)
	}
	return out
}
