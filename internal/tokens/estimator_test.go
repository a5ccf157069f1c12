package tokens

import "testing"

func TestEstimatorCount(t *testing.T) {
	e := NewEstimator()

	n, err := e.Count("Rivers form when precipitation collects into channels.")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n == 0 {
		t.Error("Count() = 0 for non-empty text")
	}

	empty, err := e.Count("")
	if err != nil {
		t.Fatalf("Count(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("Count(empty) = %d, want 0", empty)
	}

	// Longer text yields a larger count.
	longer, err := e.Count("Rivers form when precipitation collects into channels. " +
		"Over time the flow erodes the bed and the channel deepens.")
	if err != nil {
		t.Fatalf("Count(longer) error = %v", err)
	}
	if longer <= n {
		t.Errorf("Count(longer) = %d, want > %d", longer, n)
	}
}
