package account

import (
	"context"
	"time"

	"github.com/flowcap/settlenet/id"
)

// Store is the persistence contract for accounts.
type Store interface {
	Create(ctx context.Context, a *Account) error
	Get(ctx context.Context, acctID id.AccountID) (*Account, error)
	SetStatus(ctx context.Context, acctID id.AccountID, status Status) error
	UpdateCreditLimit(ctx context.Context, acctID id.AccountID, a *Account) error
	UpdateSanctions(ctx context.Context, acctID id.AccountID, a *Account) error
	// AdjustReservedCredit atomically adds delta (positive to reserve,
	// negative to release) to the account's reserved-credit field,
	// stamps ReservedAt with at, and returns the account's state after
	// the adjustment. Implementations must take a row-level lock for the
	// duration of the call.
	AdjustReservedCredit(ctx context.Context, acctID id.AccountID, delta int64, at time.Time) (*Account, error)
	// ListStaleReservations returns accounts with nonzero ReservedCredit
	// whose ReservedAt is older than olderThan, for the scheduler's
	// orphan-reservation sweep (spec §4.10).
	ListStaleReservations(ctx context.Context, olderThan time.Time) ([]*Account, error)
}

// CreditBureau is the external collaborator consulted when an account's
// cached credit limit has gone stale (spec §4.3).
type CreditBureau interface {
	FetchLimit(ctx context.Context, acctID id.AccountID) (int64, error)
}

// SanctionsScreener is the external collaborator consulted at each of the
// three sanctions checkpoints: submission, acceptance, pre-commit.
type SanctionsScreener interface {
	Screen(ctx context.Context, acctID id.AccountID) (clear bool, err error)
}
