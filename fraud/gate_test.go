package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/flowcap/settlenet/id"
)

type fakeOracle struct {
	score float64
	err   error
}

func (o *fakeOracle) Score(_ context.Context, _ id.InvoiceID) (float64, error) {
	return o.score, o.err
}

func TestEvaluateThreshold(t *testing.T) {
	g := New(&fakeOracle{})
	invID := id.NewInvoiceID()

	tests := []struct {
		name  string
		score float64
		pass  bool
	}{
		{"just below threshold", 0.7499, true},
		{"just above threshold", 0.7501, false},
		{"at threshold passes", 0.75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Evaluate(invID, tt.score, time.Now())
			if v.Pass != tt.pass {
				t.Errorf("Evaluate(%v) pass = %v, want %v", tt.score, v.Pass, tt.pass)
			}
		})
	}
}

func TestCheckFreshUsesCachedScore(t *testing.T) {
	g := New(&fakeOracle{score: 0.99})
	invID := id.NewInvoiceID()
	recent := time.Now().Add(-1 * time.Hour)

	verdict, score, computedAt, err := g.CheckFresh(context.Background(), invID, 0.5, recent)
	if err != nil {
		t.Fatalf("CheckFresh: %v", err)
	}
	if !verdict.Pass {
		t.Error("expected fresh cached score to pass")
	}
	if score != 0.5 || !computedAt.Equal(recent) {
		t.Error("expected cached score/timestamp unchanged since it was fresh")
	}
}

func TestCheckFreshRecomputesStaleScore(t *testing.T) {
	g := New(&fakeOracle{score: 0.82})
	invID := id.NewInvoiceID()
	stale := time.Now().Add(-26 * time.Hour)

	verdict, score, _, err := g.CheckFresh(context.Background(), invID, 0.60, stale)
	if err != nil {
		t.Fatalf("CheckFresh: %v", err)
	}
	if score != 0.82 {
		t.Errorf("expected recomputed score 0.82, got %v", score)
	}
	if verdict.Pass {
		t.Error("expected recomputed score above threshold to fail")
	}
}
