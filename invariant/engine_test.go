package invariant

import (
	"context"
	"testing"
	"time"
)

func TestNewEngineDetectsCycle(t *testing.T) {
	invariants := []*Invariant{
		{ID: "a", DependsOn: []string{"b"}},
		{ID: "b", DependsOn: []string{"a"}},
	}
	if _, err := NewEngine(invariants); err == nil {
		t.Fatal("expected cycle to be detected")
	}
}

func TestNewEngineRejectsUnknownDependency(t *testing.T) {
	invariants := []*Invariant{
		{ID: "a", DependsOn: []string{"missing"}},
	}
	if _, err := NewEngine(invariants); err == nil {
		t.Fatal("expected unknown dependency to be rejected")
	}
}

func TestCheckEvaluatesPredicate(t *testing.T) {
	invariants := []*Invariant{
		{
			ID: "kyc-verified",
			Pre: func(_ context.Context, state any) (bool, string) {
				verified, _ := state.(bool)
				if !verified {
					return false, "kyc not verified"
				}
				return true, ""
			},
			Criticality: Important,
		},
	}
	engine, err := NewEngine(invariants)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	decision := engine.Check(context.Background(), "kyc-verified", PhasePre, true, 0)
	if !decision.OK || decision.Action != ActionProceed {
		t.Errorf("expected proceed, got %+v", decision)
	}

	decision = engine.Check(context.Background(), "kyc-verified", PhasePre, false, 0)
	if decision.OK || decision.Action != ActionRollback {
		t.Errorf("expected rollback, got %+v", decision)
	}
}

func TestCheckCriticalFailureFreezes(t *testing.T) {
	invariants := []*Invariant{
		{
			ID: "ledger-balanced",
			Post: func(_ context.Context, state any) (bool, string) {
				return false, "imbalance detected"
			},
			Criticality: Critical,
		},
	}
	engine, err := NewEngine(invariants)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	decision := engine.Check(context.Background(), "ledger-balanced", PhasePost, nil, 0)
	if decision.Action != ActionFreeze {
		t.Errorf("expected freeze action for critical failure, got %s", decision.Action)
	}
}

func TestCheckDecayWindow(t *testing.T) {
	invariants := []*Invariant{
		{
			ID: "credit-limit-fresh",
			Pre: func(_ context.Context, _ any) (bool, string) {
				return true, ""
			},
			DecayWindow: time.Hour,
			Criticality: Important,
		},
	}
	engine, err := NewEngine(invariants)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	fresh := engine.Check(context.Background(), "credit-limit-fresh", PhasePre, nil, 30*time.Minute)
	if !fresh.OK {
		t.Error("expected fresh assumption to pass")
	}

	stale := engine.Check(context.Background(), "credit-limit-fresh", PhasePre, nil, 2*time.Hour)
	if stale.OK {
		t.Error("expected stale assumption to fail")
	}
}

func TestCheckAllShortCircuitsInOrder(t *testing.T) {
	var evaluated []string
	mk := func(id string, ok bool, deps ...string) *Invariant {
		return &Invariant{
			ID:        id,
			DependsOn: deps,
			Pre: func(_ context.Context, _ any) (bool, string) {
				evaluated = append(evaluated, id)
				if !ok {
					return false, id + " failed"
				}
				return true, ""
			},
			Criticality: Important,
		}
	}

	invariants := []*Invariant{
		mk("first", true),
		mk("second", false, "first"),
		mk("third", true, "second"),
	}
	engine, err := NewEngine(invariants)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	decisions := engine.CheckAll(context.Background(), []string{"first", "second", "third"}, PhasePre, nil, 0)
	if len(decisions) != 2 {
		t.Fatalf("expected short-circuit after 2 checks, got %d", len(decisions))
	}
	if evaluated[len(evaluated)-1] != "second" {
		t.Errorf("expected evaluation to stop at 'second', last was %s", evaluated[len(evaluated)-1])
	}
}
