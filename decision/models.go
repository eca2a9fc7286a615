// Package decision is the Decision Ledger (spec §4.11): a signed,
// hash-chained append-only record of every invariant check, state
// transition, and settlement outcome, so the entire sequence of gate
// decisions for an invoice can be replayed and verified after the fact.
package decision

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/invariant"
)

// Record is one immutable entry in the decision ledger.
type Record struct {
	ID          id.DecisionID        `json:"id"`
	SeqNo       int64                `json:"seq_no"`
	InvariantID string               `json:"invariant_id"`
	Phase       invariant.Phase      `json:"phase"`
	Result      bool                 `json:"result"`
	Reason      string               `json:"reason,omitempty"`
	Action      invariant.Action     `json:"action"`
	Snapshot    map[string]any       `json:"state_snapshot,omitempty"`
	Actor       string               `json:"actor"`
	CreatedAt   time.Time            `json:"created_at"`
	PrevHash    string               `json:"prev_hash"`
	Hash        string               `json:"hash"`
	Signature   string               `json:"signature"`
}

// FromDecision builds a Record from an invariant.Decision plus the
// context the caller wants preserved in the audit trail.
func FromDecision(d invariant.Decision, actor string, snapshot map[string]any) Record {
	return Record{
		ID:          id.NewDecisionID(),
		InvariantID: d.InvariantID,
		Phase:       d.Phase,
		Result:      d.OK,
		Reason:      d.Reason,
		Action:      d.Action,
		Snapshot:    snapshot,
		Actor:       actor,
		CreatedAt:   d.CheckedAt,
	}
}
