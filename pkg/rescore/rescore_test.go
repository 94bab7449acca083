package rescore

import (
	"errors"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/codeGROOVE-dev/sleepwake/pkg/label"
)

// build expands "w8 s1 w9" into 8 wake, 1 sleep and 9 wake epochs.
func build(t *testing.T, pattern string) label.Sequence {
	t.Helper()
	var seq label.Sequence
	for _, tok := range strings.Fields(pattern) {
		n, err := strconv.Atoi(tok[1:])
		if err != nil {
			t.Fatalf("bad pattern token %q: %v", tok, err)
		}
		l := label.Wake
		if tok[0] == 's' {
			l = label.Sleep
		}
		for range n {
			seq = append(seq, l)
		}
	}
	return seq
}

func randomSequences(count, maxLen int) []label.Sequence {
	rng := rand.New(rand.NewSource(42))
	out := make([]label.Sequence, count)
	for i := range out {
		seq := make(label.Sequence, rng.Intn(maxLen))
		// Biased runs so that rule thresholds are actually reached.
		cur := label.Label(rng.Intn(2))
		for j := range seq {
			if rng.Float64() < 0.15 {
				cur = 1 - cur
			}
			seq[j] = cur
		}
		out[i] = seq
	}
	return out
}

func TestScale(t *testing.T) {
	if got := ModeS().Epochs(4); got != 8 {
		t.Errorf("Expected 8 epochs for 4 minutes of 30s epochs, got %d", got)
	}
	if got := ModeMinute().Epochs(4); got != 4 {
		t.Errorf("Expected 4 epochs for 4 minutes of 60s epochs, got %d", got)
	}
	if got := ModeMinute().Epochs(0.1); got != 1 {
		t.Errorf("Expected thresholds to be at least one epoch, got %d", got)
	}
	if _, err := NewScale(0); !errors.Is(err, ErrInvalidEpoch) {
		t.Errorf("Expected ErrInvalidEpoch, got %v", err)
	}
	s, err := NewScale(20)
	if err != nil || s.Epochs(1) != 3 {
		t.Errorf("Expected 3 epochs per minute at 20s, got %d (err=%v)", s.Epochs(1), err)
	}
}

func TestWebsterRules(t *testing.T) {
	s := ModeMinute()
	tests := []struct {
		name  string
		rule  Rule
		input string
		want  string
	}{
		{"Rule1 flips isolated sleep after 4 minutes wake", s.Rule1, "w4 s1 w3", "w8"},
		{"Rule1 needs 4 minutes of wake", s.Rule1, "w3 s1 w3", "w3 s1 w3"},
		{"Rule1 ignores longer sleep", s.Rule1, "w4 s2 w3", "w4 s2 w3"},
		{"Rule1 leaves sleep at the end of the record", s.Rule1, "w6 s1", "w6 s1"},
		{"Rule1 reads wake lengths from its input", s.Rule1, "w4 s1 w1 s1 w1", "w6 s1 w1"},
		{"Rule2 flips 3 minutes after 10 minutes wake", s.Rule2, "w10 s3 w1", "w14"},
		{"Rule2 needs 10 minutes of wake", s.Rule2, "w9 s3 w1", "w9 s3 w1"},
		{"Rule3 flips 4 minutes after 15 minutes wake", s.Rule3, "w15 s4 w1", "w20"},
		{"Rule3 needs 15 minutes of wake", s.Rule3, "w14 s4 w1", "w14 s4 w1"},
		{"Rule4 flips 6 minutes surrounded by 10", s.Rule4, "s5 w10 s6 w10 s5", "s5 w26 s5"},
		{"Rule4 needs 10 minutes after", s.Rule4, "w10 s6 w9 s2", "w10 s6 w9 s2"},
		{"Rule4 ignores 7 minutes", s.Rule4, "w10 s7 w10", "w10 s7 w10"},
		{"Rule5 flips 10 minutes surrounded by 20", s.Rule5, "w20 s10 w20", "w50"},
		{"Rule5 ignores 11 minutes", s.Rule5, "w20 s11 w20", "w20 s11 w20"},
		{"Rule5 needs 20 minutes before", s.Rule5, "w19 s10 w20", "w19 s10 w20"},
		{"Rule5 skips a sleep run at the tail", s.Rule5, "w20 s10", "w20 s10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := build(t, tt.input)
			snapshot := in.Clone()
			got := tt.rule(in)
			want := build(t, tt.want)
			if got.String() != want.String() {
				t.Errorf("Expected %s, got %s", want, got)
			}
			if !slices.Equal(in, snapshot) {
				t.Errorf("Rule mutated its input: %s -> %s", snapshot, in)
			}
		})
	}
}

func TestRule1ThirtySecondExample(t *testing.T) {
	in := label.MustFromInts(0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	got := ModeS().Rule1(in)
	if got.Count(label.Sleep) != 0 || len(got) != len(in) {
		t.Errorf("Expected all wake of length %d, got %s", len(in), got)
	}
	if got := ModeS().Webster(in); got.Count(label.Sleep) != 0 {
		t.Errorf("Expected Webster to clear the isolated sleep epoch, got %s", got)
	}
}

func TestRulesReadTheirInput(t *testing.T) {
	s := ModeS()
	in := label.MustFromInts(0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0)
	got := s.Rule1(in)
	// Index 10 follows a single wake epoch in the input, so it stays asleep even
	// though index 8 is rescored.
	want := label.MustFromInts(0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0)
	if !slices.Equal(got, want) {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if again := s.Rule1(got); again.Count(label.Sleep) != 0 {
		t.Errorf("Expected a second application to clear index 10, got %s", again)
	}
	if got := s.Webster(in); got.Count(label.Sleep) != 0 {
		t.Errorf("Expected Webster to reach all wake, got %s", got)
	}
}

func TestRulesPreserveLength(t *testing.T) {
	for _, s := range []Scale{ModeS(), ModeMinute()} {
		passes := append(s.Rules(),
			s.WebsterPass, s.Webster,
			s.RescoreWake, s.RescoreWakeTail, s.RescoreSleep, s.RescoreSleepTail)
		for i, seq := range randomSequences(200, 300) {
			for j, pass := range passes {
				snapshot := seq.Clone()
				got := pass(seq)
				if len(got) != len(seq) {
					t.Fatalf("sequence %d pass %d: expected length %d, got %d", i, j, len(seq), len(got))
				}
				if !slices.Equal(seq, snapshot) {
					t.Fatalf("sequence %d pass %d mutated its input", i, j)
				}
			}
		}
	}
}

func TestFixedPointAfterTwoPasses(t *testing.T) {
	for _, s := range []Scale{ModeS(), ModeMinute()} {
		for i, seq := range randomSequences(200, 400) {
			once := s.Webster(seq)
			twice := s.Webster(once)
			if !slices.Equal(once, twice) {
				t.Fatalf("sequence %d: Webster not idempotent\nonce:  %s\ntwice: %s", i, once, twice)
			}
			for j, rule := range s.Rules() {
				if again := rule(once); !slices.Equal(once, again) {
					t.Fatalf("sequence %d: rule %d still fires after Webster", i, j+1)
				}
			}
		}
	}
}

func TestWebsterLeavesUniformSequencesAlone(t *testing.T) {
	s := ModeS()
	for _, pattern := range []string{"", "s100", "w100"} {
		in := build(t, pattern)
		if got := s.Webster(in); !slices.Equal(got, in) {
			t.Errorf("Pattern %q changed to %s", pattern, got)
		}
	}
}

func TestRepairs(t *testing.T) {
	s := ModeMinute()
	tests := []struct {
		name  string
		rule  Rule
		input string
		want  string
	}{
		{"RescoreWake fills a short gap between long sleep", s.RescoreWake, "s10 w5 s10", "s25"},
		{"RescoreWake fills a 14 minute gap", s.RescoreWake, "s10 w14 s10", "s34"},
		{"RescoreWake leaves a 15 minute gap", s.RescoreWake, "s10 w15 s10", "s10 w15 s10"},
		{"RescoreWake needs long sleep before", s.RescoreWake, "s9 w5 s10", "s9 w5 s10"},
		{"RescoreWakeTail fills inside the tail window", s.RescoreWakeTail, "w15 s1 w7 s1 w6", "w15 s9 w6"},
		{"RescoreWakeTail ignores short records", s.RescoreWakeTail, "s1 w2 s1", "s1 w2 s1"},
		{"RescoreSleep drops isolated sleep", s.RescoreSleep, "s1 w14 s1 w3", "s1 w18"},
		{"RescoreSleep keeps close sleep", s.RescoreSleep, "s1 w13 s1 w3", "s1 w13 s1 w3"},
		{"RescoreSleepTail extends late sleep", s.RescoreSleepTail, "w20 s1 w4", "w20 s5"},
		{"RescoreSleepTail needs the exact offset", s.RescoreSleepTail, "w20 w1 s1 w3", "w21 s1 w3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule(build(t, tt.input))
			if want := build(t, tt.want); got.String() != want.String() {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestRepairsThirtySecondEpochs(t *testing.T) {
	s := ModeS()
	tests := []struct {
		name  string
		rule  Rule
		input string
		want  string
	}{
		{"RescoreWake fills a gap of 30 epochs", s.RescoreWake, "s20 w29 s20", "s69"},
		{"RescoreWake leaves a gap of 31 epochs", s.RescoreWake, "s20 w30 s20", "s20 w30 s20"},
		{"RescoreWake needs 20 epochs of sleep before", s.RescoreWake, "s19 w5 s20", "s19 w5 s20"},
		{"RescoreWake accepts exactly 20 epochs of sleep", s.RescoreWake, "s20 w5 s20", "s45"},
		{"RescoreWakeTail fills a gap of 14 epochs", s.RescoreWakeTail, "w30 s1 w13 s1 w8", "w30 s15 w8"},
		{"RescoreWakeTail leaves a gap of 13 epochs", s.RescoreWakeTail, "w30 s1 w12 s1 w9", "w30 s1 w12 s1 w9"},
		{"RescoreWakeTail ignores the last 8 epochs", s.RescoreWakeTail, "w30 s1 w14 s1 w7", "w30 s1 w14 s1 w7"},
		{"RescoreSleep drops sleep 30 epochs later", s.RescoreSleep, "s1 w29 s1 w3", "s1 w33"},
		{"RescoreSleep keeps sleep 29 epochs later", s.RescoreSleep, "s1 w28 s1 w3", "s1 w28 s1 w3"},
		{"RescoreSleepTail fills the last 10 epochs at offset 30", s.RescoreSleepTail, "w40 s1 w9", "w40 s10"},
		{"RescoreSleepTail ignores offset 31", s.RescoreSleepTail, "w41 s1 w8", "w41 s1 w8"},
		{"RescoreSleepTail ignores offset 29", s.RescoreSleepTail, "w39 s1 w10", "w39 s1 w10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rule(build(t, tt.input))
			if want := build(t, tt.want); got.String() != want.String() {
				t.Errorf("Expected %s, got %s", want, got)
			}
		})
	}
}

func TestPipeline(t *testing.T) {
	s := ModeMinute()
	p, err := NewPipeline(s, []Repair{RepairWake}, []Repair{RepairSleepTail})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	in := build(t, "s10 w5 s10 w10 s1 w10")
	got := p.Apply(in)
	// The wake gap is filled first, then Webster removes the lone sleep epoch.
	if want := build(t, "s25 w21"); got.String() != want.String() {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if _, err := NewPipeline(s, []Repair{"bogus"}, nil); err == nil {
		t.Error("Expected error for unknown repair pass")
	}
}
