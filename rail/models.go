// Package rail defines the uniform prepare/commit/rollback contract every
// payment rail adapter must satisfy (spec §4.9), and a priority-ordered
// registry the Settlement Coordinator uses to pick a healthy rail.
package rail

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// CommitResult classifies the outcome of a commit call.
type CommitResult string

const (
	Committed    CommitResult = "committed"
	Indeterminate CommitResult = "indeterminate"
	Failed       CommitResult = "failed"
)

// PrepareToken identifies a reservation made during the prepare phase. It
// is opaque to the coordinator and round-tripped back into Commit/
// Rollback/Compensate.
type PrepareToken struct {
	RailTxnID id.RailTxnID
	Rail      string
}

// Health is the result of a rail's health probe.
type Health struct {
	Up        bool
	LatencyMS int64
	CheckedAt time.Time
}

// IsStale reports whether the health snapshot is older than maxAge (spec
// §4.9: "the health probe is stale").
func (h Health) IsStale(now time.Time, maxAge time.Duration) bool {
	return now.Sub(h.CheckedAt) > maxAge
}

// Adapter is the uniform contract every rail implementation satisfies.
// The settlement id is the idempotency key for every call (spec §4.8):
// retries with the same SettlementID and leg must be safe.
type Adapter interface {
	Name() string
	Priority() int

	Prepare(ctx context.Context, settlementID id.SettlementID, account id.AccountID, amount types.Money) (PrepareToken, error)
	Commit(ctx context.Context, token PrepareToken) (CommitResult, error)
	Rollback(ctx context.Context, token PrepareToken) error
	// Status resolves an indeterminate commit by its idempotent key,
	// returning a terminal CommitResult.
	Status(ctx context.Context, settlementID id.SettlementID) (CommitResult, error)
	Health(ctx context.Context) (Health, error)
	// Compensate reverses a committed leg, producing a new correcting
	// ledger entry via the caller rather than deleting anything.
	Compensate(ctx context.Context, token PrepareToken) error
}
