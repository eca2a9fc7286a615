// Package invariant implements the invariant engine (spec §4.2): named,
// pre/post-checked predicates with decay windows and criticality, evaluated
// in dependency order ahead of and behind every guarded operation.
package invariant

import (
	"context"
	"time"
)

// Criticality determines how a failure propagates.
type Criticality string

const (
	// Important failures reject the in-flight operation.
	Important Criticality = "important"
	// Critical failures are financial-reconciliation class and escalate
	// to a system freeze rather than a plain rollback (spec §7).
	Critical Criticality = "critical"
)

// Phase is when a predicate runs relative to the guarded operation.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Action is what the engine recommends after a check, surfaced on the
// Decision it returns.
type Action string

const (
	ActionProceed  Action = "proceed"
	ActionRollback Action = "rollback"
	ActionFreeze   Action = "freeze"
)

// Predicate evaluates one side of an Invariant against ctx, returning
// whether it held and a human-readable reason when it did not.
type Predicate func(ctx context.Context, state any) (ok bool, reason string)

// Invariant declares an invariant the engine can check. No enforcement
// mode other than block is permitted in the core (spec §4.2) — there is
// deliberately no warn-only field.
type Invariant struct {
	ID          string
	DependsOn   []string
	Pre         Predicate
	Post        Predicate
	DecayWindow time.Duration
	Criticality Criticality
}

// Decision is the outcome of one invariant check, and is itself recorded
// to the Decision Ledger by the caller.
type Decision struct {
	InvariantID string
	Phase       Phase
	OK          bool
	Reason      string
	Action      Action
	CheckedAt   time.Time
}
