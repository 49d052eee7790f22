package domain

import "testing"

func TestChangePolicyFirstObservation(t *testing.T) {
	p := NewChangePolicy(0.001)
	if !p.Significant(Snapshot{}, 42.0) {
		t.Errorf("first observation must be significant")
	}
}

func TestChangePolicyThreshold(t *testing.T) {
	p := NewChangePolicy(0.001)

	cases := []struct {
		name string
		prev float64
		next float64
		want bool
	}{
		{"same price", 100.0, 100.0, false},
		{"0.2 percent up", 100.0, 100.2, true},
		{"0.05 percent up", 100.0, 100.05, false},
		{"1.5 percent up", 100.0, 101.5, true},
		{"0.2 percent down", 100.0, 99.8, true},
		{"exactly at threshold", 100.0, 100.1, false},
	}

	for _, tc := range cases {
		prev := Snapshot{Close: tc.prev, Has: true}
		if got := p.Significant(prev, tc.next); got != tc.want {
			t.Errorf("%s: Significant(%v, %v) = %v, want %v", tc.name, tc.prev, tc.next, got, tc.want)
		}
	}
}

func TestChangePolicyZeroPrevClose(t *testing.T) {
	p := NewChangePolicy(0.001)
	prev := Snapshot{Close: 0, Has: true}
	if !p.Significant(prev, 5.0) {
		t.Errorf("zero previous close must be significant")
	}
}

func TestChangePolicyDefaultThreshold(t *testing.T) {
	p := NewChangePolicy(0)
	if p.Threshold != DefaultThreshold {
		t.Fatalf("expected default threshold %v, got %v", DefaultThreshold, p.Threshold)
	}
	prev := Snapshot{Close: 100.0, Has: true}
	if p.Significant(prev, 100.05) {
		t.Errorf("0.05%% change should not be significant at default threshold")
	}
}
