// Package fraud wraps an external scoring oracle behind a freshness
// policy (spec §4.7): a score older than FreshnessWindow must be
// recomputed before the gate can pass, and the final pre-commit check
// must see the identical (score, computed_at) pair used at acceptance.
package fraud

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
)

// RejectThreshold is the score above which an invoice never progresses
// past fraud-review (spec §4.7).
const RejectThreshold = 0.75

// FreshnessWindow is the maximum age of a score trusted without
// recomputation, checked at acceptance.
const FreshnessWindow = 24 * time.Hour

// Verdict is the outcome of a gate evaluation.
type Verdict struct {
	InvoiceID  id.InvoiceID
	Score      float64
	ComputedAt time.Time
	Pass       bool
	Reason     string
}

// Oracle is the external score collaborator.
type Oracle interface {
	Score(ctx context.Context, invID id.InvoiceID) (float64, error)
}
