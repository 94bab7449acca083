package rescore

import (
	"slices"

	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
)

// shortSleep describes one Webster rule: a sleep run of at most maxSleep minutes
// with at least wakeBefore minutes of wake before it and at least wakeAfter
// minutes of wake after it is rescored as wake.
type shortSleep struct {
	maxSleep   float64
	wakeBefore float64
	wakeAfter  float64
}

var (
	rule1 = shortSleep{maxSleep: 1, wakeBefore: 4}
	rule2 = shortSleep{maxSleep: 3, wakeBefore: 10}
	rule3 = shortSleep{maxSleep: 4, wakeBefore: 15}
	rule4 = shortSleep{maxSleep: 6, wakeBefore: 10, wakeAfter: 10}
	rule5 = shortSleep{maxSleep: 10, wakeBefore: 20, wakeAfter: 20}
)

// apply reads the run list of seq as it is before any change: the wake before a
// sleep run is the preceding run of the input, even when an earlier sleep run was
// rescored in the same pass. A sleep run with no wake after it (end of record) is
// left alone.
func (s Scale) apply(r shortSleep, seq label.Sequence) label.Sequence {
	out := seq.Clone()
	rs := seq.Runs()

	maxSleep := s.Epochs(r.maxSleep)
	before := s.Epochs(r.wakeBefore)
	after := 1
	if r.wakeAfter > 0 {
		after = s.Epochs(r.wakeAfter)
	}

	for i, run := range rs {
		if run.Label != label.Sleep || i == 0 || i+1 >= len(rs) {
			continue
		}
		if rs[i-1].Len() >= before && run.Len() <= maxSleep && rs[i+1].Len() >= after {
			out.Fill(run.Start, run.End, label.Wake)
		}
	}
	return out
}

// Rule1 rescores up to 1 minute of sleep after at least 4 minutes of wake.
func (s Scale) Rule1(seq label.Sequence) label.Sequence { return s.apply(rule1, seq) }

// Rule2 rescores up to 3 minutes of sleep after at least 10 minutes of wake.
func (s Scale) Rule2(seq label.Sequence) label.Sequence { return s.apply(rule2, seq) }

// Rule3 rescores up to 4 minutes of sleep after at least 15 minutes of wake.
func (s Scale) Rule3(seq label.Sequence) label.Sequence { return s.apply(rule3, seq) }

// Rule4 rescores 6 minutes or less of sleep surrounded by at least 10 minutes
// of wake on both sides.
func (s Scale) Rule4(seq label.Sequence) label.Sequence { return s.apply(rule4, seq) }

// Rule5 rescores 10 minutes or less of sleep surrounded by at least 20 minutes
// of wake on both sides.
func (s Scale) Rule5(seq label.Sequence) label.Sequence { return s.apply(rule5, seq) }

// Rules returns Webster's rules in application order.
func (s Scale) Rules() []Rule {
	return []Rule{s.Rule1, s.Rule2, s.Rule3, s.Rule4, s.Rule5}
}

// WebsterPass applies rules 1 through 5 once, each feeding the next.
func (s Scale) WebsterPass(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	for _, r := range s.Rules() {
		out = r(out)
	}
	return out
}

// Webster repeats WebsterPass until a pass changes nothing. The rules only turn
// sleep into wake, so this stops after at most one pass per sleep run.
func (s Scale) Webster(seq label.Sequence) label.Sequence {
	cur := seq.Clone()
	for {
		next := s.WebsterPass(cur)
		if slices.Equal(next, cur) {
			return next
		}
		cur = next
	}
}
