package tdma

import "testing"

func TestNormalizeWrapsHyperframe(t *testing.T) {
	tm := Time{FN: HyperframeLength + 5, TN: 2}.Normalize()
	if tm.FN != 5 {
		t.Fatalf("FN = %d, want 5", tm.FN)
	}
}

func TestAddWrapsAtHyperframeBoundary(t *testing.T) {
	tm := Time{FN: HyperframeLength - 1, TN: 0}.Add(2)
	if tm.FN != 1 {
		t.Fatalf("FN = %d, want 1", tm.FN)
	}
}

func TestSubShortestPath(t *testing.T) {
	a := Time{FN: 2, TN: 0}
	b := Time{FN: HyperframeLength - 2, TN: 0}
	if d := a.Sub(b); d != 4 {
		t.Fatalf("Sub across wrap = %d, want 4", d)
	}
}

func TestRollForwardMonotonic(t *testing.T) {
	m := NewMapping("SDCCH/4:0", []int{0}, true, 4, 102, []int{0, 51, 52, 53})
	tm := Time{FN: 0, TN: 0}
	prev := tm
	for step := 0; step < 12; step++ {
		tm = m.RollForward(tm, step)
		if !prev.Less(tm) && step > 0 {
			t.Fatalf("rollForward step %d: time did not advance (%s -> %s)", step, prev, tm)
		}
		prev = tm
	}
}

func TestReverseMappingInverse(t *testing.T) {
	m := NewMapping("SDCCH/4:0", []int{0}, true, 4, 102, []int{0, 51, 52, 53})
	for i, off := range m.Forward {
		if got := m.ReverseMapping(off); got != i {
			t.Fatalf("ReverseMapping(%d) = %d, want %d", off, got, i)
		}
	}
	if got := m.ReverseMapping(17); got != -1 {
		t.Fatalf("ReverseMapping(17) = %d, want -1 for an offset outside the schedule", got)
	}
}
