// Package label defines per-epoch sleep/wake labels and the run list derived from them.
package label

import (
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/sleepwake/pkg/runs"
)

// Label is the binary score of one epoch.
type Label uint8

const (
	// Wake marks an epoch scored as wake.
	Wake Label = 0
	// Sleep marks an epoch scored as sleep.
	Sleep Label = 1
)

func (l Label) String() string {
	if l == Sleep {
		return "sleep"
	}
	return "wake"
}

// Sequence is an epoch-indexed label series. Its length never changes once scored.
type Sequence []Label

// Run is a maximal block of epochs sharing one label. End is exclusive.
type Run struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Label Label `json:"label"`
}

// Len returns the number of epochs in the run.
func (r Run) Len() int {
	return r.End - r.Start
}

// FromInts converts 0/1 integers into a Sequence.
func FromInts(xs []int) (Sequence, error) {
	seq := make(Sequence, len(xs))
	for i, x := range xs {
		switch x {
		case 0:
			seq[i] = Wake
		case 1:
			seq[i] = Sleep
		default:
			return nil, fmt.Errorf("label at index %d: expected 0 or 1, got %d", i, x)
		}
	}
	return seq, nil
}

// MustFromInts is FromInts for literals known to be valid.
func MustFromInts(xs ...int) Sequence {
	seq, err := FromInts(xs)
	if err != nil {
		panic(err)
	}
	return seq
}

// Ints returns the labels as 0/1 integers.
func (s Sequence) Ints() []int {
	out := make([]int, len(s))
	for i, l := range s {
		out[i] = int(l)
	}
	return out
}

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Count returns how many epochs carry l.
func (s Sequence) Count(l Label) int {
	n := 0
	for _, v := range s {
		if v == l {
			n++
		}
	}
	return n
}

// Indices returns the positions holding l, in order.
func (s Sequence) Indices(l Label) []int {
	return runs.Where(s, func(v Label) bool { return v == l })
}

// Runs returns the run list of the sequence.
func (s Sequence) Runs() []Run {
	encoded := runs.Encode(s)
	out := make([]Run, len(encoded))
	for i, r := range encoded {
		out[i] = Run{Start: r.Start, End: r.End(), Label: r.Value}
	}
	return out
}

// Fill sets [start, end) to l, clamped to the sequence bounds.
func (s Sequence) Fill(start, end int, l Label) {
	start = max(start, 0)
	end = min(end, len(s))
	for i := start; i < end; i++ {
		s[i] = l
	}
}

// String renders the sequence as a compact 0/1 string.
func (s Sequence) String() string {
	var b strings.Builder
	b.Grow(len(s))
	for _, l := range s {
		if l == Sleep {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
