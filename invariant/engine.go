package invariant

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine caches registered invariants and their topological evaluation
// order, the way plugin.Registry caches hook implementations for O(1)
// dispatch. Order is computed once, at NewEngine, not per call.
type Engine struct {
	mu         sync.RWMutex
	invariants map[string]*Invariant
	order      []string
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine validates that invariants form an acyclic dependency graph and
// returns an Engine ready to serve Check calls. It errors rather than
// starting serving if the graph has a cycle or an invariant names an
// unregistered dependency (spec §4.2).
func NewEngine(invariants []*Invariant, opts ...Option) (*Engine, error) {
	byID := make(map[string]*Invariant, len(invariants))
	for _, inv := range invariants {
		byID[inv.ID] = inv
	}
	order, err := topoSort(byID)
	if err != nil {
		return nil, fmt.Errorf("invariant graph: %w", err)
	}

	e := &Engine{
		invariants: byID,
		order:      order,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Check evaluates a single named invariant's predicate for the given
// phase against state, honoring its decay window: an assumption older
// than DecayWindow, in either phase, is treated as failed rather than
// trusted stale.
func (e *Engine) Check(ctx context.Context, invariantID string, phase Phase, state any, assumptionAge time.Duration) Decision {
	e.mu.RLock()
	inv, ok := e.invariants[invariantID]
	e.mu.RUnlock()

	now := e.now()
	if !ok {
		return Decision{InvariantID: invariantID, Phase: phase, OK: false, Reason: "unknown invariant", Action: ActionRollback, CheckedAt: now}
	}

	if inv.DecayWindow > 0 && assumptionAge > inv.DecayWindow {
		return e.fail(inv, phase, "assumption exceeded decay window", now)
	}

	var pred Predicate
	switch phase {
	case PhasePre:
		pred = inv.Pre
	case PhasePost:
		pred = inv.Post
	}
	if pred == nil {
		return Decision{InvariantID: invariantID, Phase: phase, OK: true, Action: ActionProceed, CheckedAt: now}
	}

	ok, reason := pred(ctx, state)
	if !ok {
		return e.fail(inv, phase, reason, now)
	}
	return Decision{InvariantID: invariantID, Phase: phase, OK: true, Action: ActionProceed, CheckedAt: now}
}

func (e *Engine) fail(inv *Invariant, phase Phase, reason string, now time.Time) Decision {
	action := ActionRollback
	if inv.Criticality == Critical {
		action = ActionFreeze
	}
	e.logger.Warn("invariant check failed",
		"invariant_id", inv.ID, "phase", phase, "reason", reason, "action", action)
	return Decision{InvariantID: inv.ID, Phase: phase, OK: false, Reason: reason, Action: action, CheckedAt: now}
}

// CheckAll evaluates every registered invariant named in ids, in the
// engine's topological order, and short-circuits on the first failure
// (spec §4.2: "a failure short-circuits"). The decay window check uses the
// same assumptionAge for every invariant in the batch; callers needing
// per-invariant ages should call Check directly.
func (e *Engine) CheckAll(ctx context.Context, ids []string, phase Phase, state any, assumptionAge time.Duration) []Decision {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var decisions []Decision
	for _, id := range e.order {
		if !wanted[id] {
			continue
		}
		d := e.Check(ctx, id, phase, state, assumptionAge)
		decisions = append(decisions, d)
		if !d.OK {
			break
		}
	}
	return decisions
}
