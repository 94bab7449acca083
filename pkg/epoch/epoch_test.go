package epoch

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWindows(t *testing.T) {
	t.Run("Signal of exactly one window yields one window", func(t *testing.T) {
		ws, err := Windows(64, 4, 16, 1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if diff := cmp.Diff([]Window{{Start: 0, End: 64}}, ws); diff != "" {
			t.Errorf("Windows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Signal shorter than one window yields nothing", func(t *testing.T) {
		ws, err := Windows(63, 4, 16, 1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if len(ws) != 0 {
			t.Errorf("Expected no windows, got %v", ws)
		}
	})

	t.Run("Overlapping windows step by stride and drop the partial tail", func(t *testing.T) {
		ws, err := Windows(10, 2, 2, 1)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := []Window{{0, 4}, {2, 6}, {4, 8}, {6, 10}}
		if diff := cmp.Diff(want, ws); diff != "" {
			t.Errorf("Windows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Non-overlapping epochs tile the signal", func(t *testing.T) {
		ws, err := Windows(95, 1, 30, 30)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := []Window{{0, 30}, {30, 60}, {60, 90}}
		if diff := cmp.Diff(want, ws); diff != "" {
			t.Errorf("Windows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Fractional stride is rejected", func(t *testing.T) {
		if _, err := Windows(100, 3, 1, 0.5); !errors.Is(err, ErrInvalidStride) {
			t.Errorf("Expected ErrInvalidStride, got %v", err)
		}
	})

	t.Run("Zero rate is rejected", func(t *testing.T) {
		if _, err := Windows(100, 0, 1, 1); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("Expected ErrInvalidRate, got %v", err)
		}
	})
}

func TestSignalValidate(t *testing.T) {
	s := Signal{Samples: make([]float64, 10), Timestamps: make([]float64, 9), Rate: 1}
	if _, err := s.Windows(2, 1); !errors.Is(err, ErrMismatchedLengths) {
		t.Errorf("Expected ErrMismatchedLengths, got %v", err)
	}

	s.Timestamps = nil
	ws, err := s.Windows(5, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ws) != 2 {
		t.Errorf("Expected 2 windows, got %d", len(ws))
	}
}

func TestSegmentsAndTimes(t *testing.T) {
	s := Signal{Samples: []float64{1, 2, 3, 4, 5, 6}, Rate: 2}
	ws, err := s.Windows(1, 1)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	segs := s.Segments(ws)
	if diff := cmp.Diff([][]float64{{1, 2}, {3, 4}, {5, 6}}, segs); diff != "" {
		t.Errorf("Segments mismatch (-want +got):\n%s", diff)
	}

	times := s.Times(ws)
	if diff := cmp.Diff([][]float64{{0, 0.5}, {1, 1.5}, {2, 2.5}}, times); diff != "" {
		t.Errorf("Times mismatch (-want +got):\n%s", diff)
	}

	s.Timestamps = []float64{10, 11, 12, 13, 14, 15}
	if got := s.Times(ws)[1]; !cmp.Equal(got, []float64{12, 13}) {
		t.Errorf("Expected explicit timestamps [12 13], got %v", got)
	}
}

func TestAtEnds(t *testing.T) {
	t.Run("Epochs end at the given indices", func(t *testing.T) {
		ws, err := AtEnds(100, []int{30, 60, 90}, 1, 30)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		want := []Window{{0, 30}, {30, 60}, {60, 90}}
		if diff := cmp.Diff(want, ws); diff != "" {
			t.Errorf("AtEnds mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Overlapping ends are rejected", func(t *testing.T) {
		if _, err := AtEnds(100, []int{30, 50}, 1, 30); !errors.Is(err, ErrNonMonotonic) {
			t.Errorf("Expected ErrNonMonotonic, got %v", err)
		}
	})

	t.Run("Epoch before the first sample is rejected", func(t *testing.T) {
		if _, err := AtEnds(100, []int{10}, 1, 30); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Expected ErrOutOfRange, got %v", err)
		}
	})

	t.Run("Epoch past the last sample is rejected", func(t *testing.T) {
		if _, err := AtEnds(100, []int{120}, 1, 30); !errors.Is(err, ErrOutOfRange) {
			t.Errorf("Expected ErrOutOfRange, got %v", err)
		}
	})
}
