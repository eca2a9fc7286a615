package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Registry is the account component (spec §4.3): account lookup, status
// changes, credit reservation with staleness-triggered refresh, and
// sanctions screening.
type Registry struct {
	store    Store
	bureau   CreditBureau
	screener SanctionsScreener
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source; used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(store Store, bureau CreditBureau, screener SanctionsScreener, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		bureau:   bureau,
		screener: screener,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get fetches an account by id.
func (r *Registry) Get(ctx context.Context, acctID id.AccountID) (*Account, error) {
	return r.store.Get(ctx, acctID)
}

// SetStatus transitions an account's administrative status.
func (r *Registry) SetStatus(ctx context.Context, acctID id.AccountID, status Status) error {
	if err := r.store.SetStatus(ctx, acctID, status); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	r.logger.Info("account status changed", "account_id", acctID.String(), "status", status)
	return nil
}

// RefreshCreditLimitIfStale re-fetches the credit limit from the
// credit-bureau collaborator if the cached value is older than
// CreditLimitStaleness, and persists the refreshed account.
func (r *Registry) RefreshCreditLimitIfStale(ctx context.Context, a *Account) error {
	now := r.now()
	if !a.IsCreditLimitStale(now) {
		return nil
	}
	limitMinor, err := r.bureau.FetchLimit(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("fetch credit limit: %w", err)
	}
	newLimit := types.Money{Amount: limitMinor, Currency: a.Balance.Currency}
	a.CreditLimit = &newLimit
	a.CreditLimitCheckedAt = now
	if err := r.store.UpdateCreditLimit(ctx, a.ID, a); err != nil {
		return fmt.Errorf("persist credit limit: %w", err)
	}
	r.logger.Info("credit limit refreshed", "account_id", a.ID.String())
	return nil
}

// ReserveCredit refreshes the buyer's credit limit if stale, then checks
// and reserves the requested amount against the buyer's available credit
// (spec §4.3). Returns ErrInsufficientCredit if headroom is too small.
func (r *Registry) ReserveCredit(ctx context.Context, buyer id.AccountID, amountMinor int64) error {
	a, err := r.store.Get(ctx, buyer)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if err := r.RefreshCreditLimitIfStale(ctx, a); err != nil {
		return err
	}
	available := a.AvailableCredit()
	if available.Amount < amountMinor {
		return ErrInsufficientCredit
	}
	if _, err := r.store.AdjustReservedCredit(ctx, buyer, amountMinor, r.now()); err != nil {
		return fmt.Errorf("reserve credit: %w", err)
	}
	return nil
}

// ReleaseCredit releases a previously reserved amount back to the buyer's
// available credit, on invoice rejection/expiry/failure.
func (r *Registry) ReleaseCredit(ctx context.Context, buyer id.AccountID, amountMinor int64) error {
	if _, err := r.store.AdjustReservedCredit(ctx, buyer, -amountMinor, r.now()); err != nil {
		return fmt.Errorf("release credit: %w", err)
	}
	return nil
}

// ListStaleReservations returns accounts holding credit reserved longer
// than maxAge, for the scheduler's orphan-reservation sweep (spec §4.10).
func (r *Registry) ListStaleReservations(ctx context.Context, maxAge time.Duration) ([]*Account, error) {
	return r.store.ListStaleReservations(ctx, r.now().Add(-maxAge))
}

// ScreenSanctions runs the sanctions collaborator and records the result
// and timestamp on the account, regardless of the prior snapshot's age.
// Called at each of the three checkpoints named in spec §4.3: submission,
// acceptance, pre-commit.
func (r *Registry) ScreenSanctions(ctx context.Context, acctID id.AccountID) (bool, error) {
	a, err := r.store.Get(ctx, acctID)
	if err != nil {
		return false, fmt.Errorf("get account: %w", err)
	}
	clear, err := r.screener.Screen(ctx, acctID)
	if err != nil {
		return false, fmt.Errorf("screen sanctions: %w", err)
	}
	a.SanctionsClear = clear
	a.SanctionsCheckedAt = r.now()
	if err := r.store.UpdateSanctions(ctx, acctID, a); err != nil {
		return false, fmt.Errorf("persist sanctions: %w", err)
	}
	if !clear {
		r.logger.Warn("account failed sanctions screening", "account_id", acctID.String())
	}
	return clear, nil
}
