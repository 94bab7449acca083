package rescore

import (
	"fmt"

	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
	"github.com/codeGROOVE-dev/sleepwake/pkg/runs"
)

// RescoreWake fills short wake gaps inside sleep. When two consecutive sleep
// epochs are at most 15 minutes apart, and a run of at least 10 minutes of
// sleep exists both at or before the first and at or after the second, the
// wake epochs between them are rescored as sleep.
func (s Scale) RescoreWake(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	markers := seq.Indices(label.Sleep)
	if len(markers) < 2 {
		return out
	}

	maxGap := s.Epochs(15)
	groups := runs.Consecutive(markers, s.Epochs(10))
	if len(groups) == 0 {
		return out
	}
	firstEnd := groups[0][len(groups[0])-1]
	lastStart := groups[len(groups)-1][0]

	for i := 0; i+1 < len(markers); i++ {
		a, b := markers[i], markers[i+1]
		if b-a < 2 || b-a > maxGap {
			continue
		}
		// A long run must finish by a and another must begin at or after b.
		if firstEnd <= a && lastStart >= b {
			out.Fill(a+1, b, label.Sleep)
		}
	}
	return out
}

// RescoreWakeTail applies the gap fill to the end of the record only: inside the
// window from 15 to 4 minutes before the end, wake between two sleep epochs at
// least 7 minutes apart is rescored as sleep.
func (s Scale) RescoreWakeTail(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	start := max(len(seq)-s.Epochs(15), 0)
	end := len(seq) - s.Epochs(4)
	if end-start < 2 {
		return out
	}

	markers := seq[start:end].Indices(label.Sleep)
	minGap := s.Epochs(7)
	for i := 0; i+1 < len(markers); i++ {
		if markers[i+1]-markers[i] >= minGap {
			out.Fill(start+markers[i]+1, start+markers[i+1], label.Sleep)
		}
	}
	return out
}

// RescoreSleep drops isolated sleep: when two consecutive sleep epochs are at
// least 15 minutes apart, the later one is rescored as wake.
func (s Scale) RescoreSleep(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	markers := seq.Indices(label.Sleep)
	minGap := s.Epochs(15)
	for i := 0; i+1 < len(markers); i++ {
		if markers[i+1]-markers[i] >= minGap {
			out[markers[i+1]] = label.Wake
		}
	}
	return out
}

// RescoreSleepTail looks at the last 20 minutes of the record. If the first
// sleep epoch there sits exactly 15 minutes into the window, the final 5
// minutes are rescored as sleep.
func (s Scale) RescoreSleepTail(seq label.Sequence) label.Sequence {
	out := seq.Clone()
	start := max(len(seq)-s.Epochs(20), 0)
	markers := seq[start:].Indices(label.Sleep)
	if len(markers) == 0 || markers[0] != s.Epochs(15) {
		return out
	}
	out.Fill(len(seq)-s.Epochs(5), len(seq), label.Sleep)
	return out
}

// Repair names a standalone repair pass.
type Repair string

const (
	RepairWake      Repair = "wake"
	RepairWakeTail  Repair = "wake_tail"
	RepairSleep     Repair = "sleep"
	RepairSleepTail Repair = "sleep_tail"
)

// Repair returns the pass named by r.
func (s Scale) Repair(r Repair) (Rule, error) {
	switch r {
	case RepairWake:
		return s.RescoreWake, nil
	case RepairWakeTail:
		return s.RescoreWakeTail, nil
	case RepairSleep:
		return s.RescoreSleep, nil
	case RepairSleepTail:
		return s.RescoreSleepTail, nil
	default:
		return nil, fmt.Errorf("unknown repair pass %q", r)
	}
}
