package rail

import (
	"context"
	"testing"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

type fakeAdapter struct {
	name     string
	priority int
	health   Health
	healthErr error
}

func (a *fakeAdapter) Name() string  { return a.name }
func (a *fakeAdapter) Priority() int { return a.priority }

func (a *fakeAdapter) Prepare(_ context.Context, settlementID id.SettlementID, _ id.AccountID, _ types.Money) (PrepareToken, error) {
	return PrepareToken{RailTxnID: id.NewRailTxnID(), Rail: a.name}, nil
}
func (a *fakeAdapter) Commit(_ context.Context, _ PrepareToken) (CommitResult, error) {
	return Committed, nil
}
func (a *fakeAdapter) Rollback(_ context.Context, _ PrepareToken) error { return nil }
func (a *fakeAdapter) Status(_ context.Context, _ id.SettlementID) (CommitResult, error) {
	return Committed, nil
}
func (a *fakeAdapter) Health(_ context.Context) (Health, error) { return a.health, a.healthErr }
func (a *fakeAdapter) Compensate(_ context.Context, _ PrepareToken) error { return nil }

func TestSelectPicksHighestPriorityHealthyRail(t *testing.T) {
	now := time.Now()
	reg := NewRegistry(WithClock(func() time.Time { return now }))

	reg.Register(&fakeAdapter{name: "slow-rail", priority: 10, health: Health{Up: true, CheckedAt: now}})
	reg.Register(&fakeAdapter{name: "fast-rail", priority: 1, health: Health{Up: true, CheckedAt: now}})

	selected, err := reg.Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if selected.Name() != "fast-rail" {
		t.Errorf("expected fast-rail, got %s", selected.Name())
	}
}

func TestSelectSkipsStaleOrDownRails(t *testing.T) {
	now := time.Now()
	reg := NewRegistry(WithClock(func() time.Time { return now }))

	reg.Register(&fakeAdapter{name: "down-rail", priority: 1, health: Health{Up: false, CheckedAt: now}})
	reg.Register(&fakeAdapter{name: "stale-rail", priority: 2, health: Health{Up: true, CheckedAt: now.Add(-time.Minute)}})
	reg.Register(&fakeAdapter{name: "good-rail", priority: 3, health: Health{Up: true, CheckedAt: now}})

	selected, err := reg.Select(context.Background())
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if selected.Name() != "good-rail" {
		t.Errorf("expected good-rail, got %s", selected.Name())
	}
}

func TestSelectNoHealthyRails(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeAdapter{name: "down-rail", priority: 1, health: Health{Up: false}})

	if _, err := reg.Select(context.Background()); err != ErrNoHealthyRail {
		t.Errorf("expected ErrNoHealthyRail, got %v", err)
	}
}
