// Package runs provides run-length encoding over ordered sequences.
package runs

// Run is a maximal block of equal consecutive values.
type Run[T comparable] struct {
	Value  T
	Start  int
	Length int
}

// End returns the exclusive end index of the run.
func (r Run[T]) End() int {
	return r.Start + r.Length
}

// Encode groups xs into maximal runs of equal values.
// The runs are ordered, non-overlapping and cover [0, len(xs)).
func Encode[T comparable](xs []T) []Run[T] {
	if len(xs) == 0 {
		return nil
	}

	var out []Run[T]
	current := Run[T]{Value: xs[0], Start: 0, Length: 1}
	for i := 1; i < len(xs); i++ {
		if xs[i] == current.Value {
			current.Length++
			continue
		}
		out = append(out, current)
		current = Run[T]{Value: xs[i], Start: i, Length: 1}
	}
	return append(out, current)
}

// Decode expands runs back into a flat sequence.
func Decode[T comparable](rs []Run[T]) []T {
	total := 0
	for _, r := range rs {
		total += r.Length
	}
	out := make([]T, 0, total)
	for _, r := range rs {
		for range r.Length {
			out = append(out, r.Value)
		}
	}
	return out
}

// Consecutive splits a sorted index list wherever two neighbours differ by
// anything other than one, and keeps only groups of at least minLen entries.
func Consecutive(indices []int, minLen int) [][]int {
	if len(indices) == 0 {
		return nil
	}

	var groups [][]int
	start := 0
	for i := 1; i <= len(indices); i++ {
		if i < len(indices) && indices[i]-indices[i-1] == 1 {
			continue
		}
		if i-start >= minLen {
			groups = append(groups, indices[start:i])
		}
		start = i
	}
	return groups
}

// Where returns the indices i for which keep(xs[i]) is true.
func Where[T any](xs []T, keep func(T) bool) []int {
	var out []int
	for i, x := range xs {
		if keep(x) {
			out = append(out, i)
		}
	}
	return out
}
