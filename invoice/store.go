package invoice

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
)

// Store is the persistence contract for invoices. Transition is the only
// method permitted to write the status column (spec §4.5); callers must
// route every status change through it rather than Update.
type Store interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	GetByHash(ctx context.Context, hash string) (*Invoice, error)
	List(ctx context.Context, accountID id.AccountID, opts ListOpts) ([]*Invoice, error)
	ListPending(ctx context.Context, olderThan time.Time) ([]*Invoice, error)
	UpdateFraudScore(ctx context.Context, invID id.InvoiceID, score float64, scoredAt time.Time) error
	// Transition atomically writes the status column plus any timestamp
	// implied by the target status (accepted_at, settled_at). Implementations
	// must take a row-level lock on the invoice for the duration of the call.
	Transition(ctx context.Context, invID id.InvoiceID, to Status, at time.Time) error
	// ReclassifyFailed is the operator-invoked closeout move for the
	// failed→rejected Open Question (spec §9): failed stays
	// compensation-terminal for the settlement path (no coordinator ever
	// re-attempts settlement once an invoice is failed), but ops may still
	// reclassify it to rejected for bookkeeping. Distinct from Transition
	// so the two call sites in code are never confused with each other.
	ReclassifyFailed(ctx context.Context, invID id.InvoiceID, at time.Time) error
}

// ListOpts filters and paginates invoice listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
