package math

import "testing"

func TestRollingWindowEviction(t *testing.T) {
	w := NewRollingWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	got := w.Values()
	want := []float64{3, 4, 5}
	for i, v := range want {
		if got[i] != v {
			t.Errorf("Values()[%d] = %v, want %v", i, got[i], v)
		}
	}
}

func TestRollingWindowStats(t *testing.T) {
	w := NewRollingWindow(10)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		w.Push(v)
	}
	if w.Mean() != 5 {
		t.Errorf("Mean() = %v, want 5", w.Mean())
	}
	if w.StandardDeviation() != 2 {
		t.Errorf("StandardDeviation() = %v, want 2", w.StandardDeviation())
	}
}
