// Package invoice holds the financed-invoice data model, its content-hash
// dedup key, and the authoritative lifecycle state machine.
package invoice

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Status is a lifecycle state of an invoice.
type Status string

// Authoritative transition table states. See CanTransitionTo for the table.
const (
	StatusPending      Status = "pending"
	StatusFraudReview  Status = "fraud_review"
	StatusAccepted     Status = "accepted"
	StatusSettled      Status = "settled"
	StatusFailed       Status = "failed"
	StatusRejected     Status = "rejected"
	StatusExpired      Status = "expired"
)

// Terms enumerates the allowed net-payment terms, in days.
var ValidTerms = []int{0, 15, 30, 45, 60, 90}

// IsValidTerms reports whether days is one of the whitelisted terms.
func IsValidTerms(days int) bool {
	for _, t := range ValidTerms {
		if t == days {
			return true
		}
	}
	return false
}

// Min/MaxAmount bound a submittable invoice amount, in minor units.
const (
	MinAmountMinor int64 = 10_000          // 100.00
	MaxAmountMinor int64 = 1_000_000_000_000 // 10,000,000.00
)

// Invoice is a supplier's claim against a buyer, financed by a capital
// provider selected through the auction. It is immutable after creation
// except for its status, fraud score, and lifecycle timestamps.
type Invoice struct {
	types.Entity
	ID         id.InvoiceID `json:"id"`
	SupplierID id.AccountID `json:"supplier_id"`
	BuyerID    id.AccountID `json:"buyer_id"`
	Amount     types.Money  `json:"amount"`
	Terms      int          `json:"terms_days"`
	Hash       string       `json:"hash"`
	Status     Status       `json:"status"`
	LineItems  []LineItem   `json:"line_items"`

	FraudScore   float64    `json:"fraud_score"`
	FraudScoredAt time.Time `json:"fraud_scored_at"`

	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}

// LineItem is an immutable component of an invoice's declared amount.
type LineItem struct {
	ID          id.LineItemID `json:"id"`
	InvoiceID   id.InvoiceID  `json:"invoice_id"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   types.Money   `json:"unit_price"`
	Amount      types.Money   `json:"amount"`
}

// LineItemTotal sums the line items' amounts. Panics on currency mismatch,
// which callers prevent by constructing all amounts in the invoice currency.
func LineItemTotal(items []LineItem, currency string) types.Money {
	total := types.Zero(currency)
	for _, li := range items {
		total = total.Add(li.Amount)
	}
	return total
}

// ──────────────────────────────────────────────────
// State machine
// ──────────────────────────────────────────────────

// transitions is the authoritative table from spec §4.5. Terminal states
// map to an empty slice.
var transitions = map[Status][]Status{
	StatusPending:     {StatusAccepted, StatusRejected, StatusExpired, StatusFraudReview},
	StatusFraudReview: {StatusAccepted, StatusRejected},
	StatusAccepted:    {StatusSettled, StatusFailed},
	StatusFailed:      {StatusRejected},
	StatusSettled:     {},
	StatusRejected:    {},
	StatusExpired:     {},
}

// CanTransitionTo reports whether the invoice may move from its current
// status to `to`. Terminal states are absorbing: they can never transition.
func (inv *Invoice) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[inv.Status] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the invoice's status has no outgoing
// transitions in the table (settled, rejected, expired).
func (inv *Invoice) IsTerminal() bool {
	return len(transitions[inv.Status]) == 0
}

// GetValidTransitions lists the statuses reachable from the invoice's
// current status.
func (inv *Invoice) GetValidTransitions() []Status {
	out := transitions[inv.Status]
	result := make([]Status, len(out))
	copy(result, out)
	return result
}
