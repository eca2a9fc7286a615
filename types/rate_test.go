package types

import "testing"

func TestRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    Rate
		percent float64
		display string
	}{
		{"six percent", NewRate(6.0), 6.0, "6.00%"},
		{"half percent floor", BP(50), 0.5, "0.50%"},
		{"fifteen percent ceiling", BP(1500), 15.0, "15.00%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.rate.Percent() != tt.percent {
				t.Errorf("Percent: got %v, want %v", tt.rate.Percent(), tt.percent)
			}
			if tt.rate.String() != tt.display {
				t.Errorf("String: got %s, want %s", tt.rate.String(), tt.display)
			}
		})
	}
}

func TestRateBetween(t *testing.T) {
	lo, hi := BP(50), BP(1500)
	if !BP(600).Between(lo, hi) {
		t.Error("600bp should be within [50,1500]")
	}
	if BP(49).Between(lo, hi) {
		t.Error("49bp should be below range")
	}
	if BP(1501).Between(lo, hi) {
		t.Error("1501bp should be above range")
	}
}
