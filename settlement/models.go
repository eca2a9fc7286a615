// Package settlement hosts the Settlement Coordinator (spec §4.8), the
// hot path that drives a two-phase commit across three rail legs once an
// invoice is accepted.
package settlement

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Status is the lifecycle state of a settlement.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusRolledBack  Status = "rolled_back"
)

// LegType names one of the three transfers composing a settlement.
type LegType string

const (
	LegCreditSupplier LegType = "credit_supplier"
	LegDebitBuyer     LegType = "debit_buyer"
	LegAdvanceCapital LegType = "advance_capital"
)

// MaxDuration is the invariant bound on a settlement's wall-clock time
// (spec §3): completed_at - started_at < 5s under nominal conditions.
const MaxDuration = 5 * time.Second

// Settlement is the unique, exactly-once financial event tying an
// invoice to its three legs.
type Settlement struct {
	types.Entity
	ID          id.SettlementID `json:"id"`
	InvoiceID   id.InvoiceID    `json:"invoice_id"`
	SupplierID  id.AccountID    `json:"supplier_id"`
	BuyerID     id.AccountID    `json:"buyer_id"`
	ProviderID  id.AccountID    `json:"provider_id"`
	Amount      types.Money     `json:"amount"`
	DiscountRate types.Rate     `json:"discount_rate"`
	BuyerCost   types.Money     `json:"buyer_cost"`
	Status      Status          `json:"status"`
	Rail        string          `json:"rail"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Leg is one of the three transfers making up a Settlement.
type Leg struct {
	ID           id.LegID        `json:"id"`
	SettlementID id.SettlementID `json:"settlement_id"`
	Type         LegType         `json:"type"`
	AccountID    id.AccountID    `json:"account_id"`
	Amount       types.Money     `json:"amount"`
	RailTxnID    id.RailTxnID    `json:"rail_txn_id"`
	Committed    bool            `json:"committed"`
}

// OutcomeKind classifies a settlement Outcome, replacing exception-style
// control flow in the coordinator (spec §9 Design Notes) with a value
// every pre-check and leg call returns.
type OutcomeKind string

const (
	OutcomeOK       OutcomeKind = "ok"
	OutcomeReject   OutcomeKind = "reject"
	OutcomeAbort    OutcomeKind = "abort"
)

// Outcome is the explicit result type the coordinator reduces over. Kind
// distinguishes a clean rejection (no side effects) from an abort
// (partial work that requires compensation).
type Outcome struct {
	Kind         OutcomeKind
	Reason       string
	Settlement   *Settlement
}

// OK builds a successful Outcome.
func OK(s *Settlement) Outcome { return Outcome{Kind: OutcomeOK, Settlement: s} }

// Reject builds a pre-barrier rejection Outcome: no ledger write occurred.
func Reject(reason string) Outcome { return Outcome{Kind: OutcomeReject, Reason: reason} }

// Abort builds an Outcome for a failure after partial work began.
func Abort(reason string) Outcome { return Outcome{Kind: OutcomeAbort, Reason: reason} }
