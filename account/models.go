// Package account holds the registry of suppliers, buyers, and capital
// providers participating in the settlement network: their status, KYC
// state, and credit-limit cache.
package account

import (
	"time"

	"github.com/flowcap/settlenet/id"
	"github.com/flowcap/settlenet/types"
)

// Role is the part an account plays in a settlement.
type Role string

const (
	RoleSupplier        Role = "supplier"
	RoleBuyer           Role = "buyer"
	RoleCapitalProvider Role = "capital_provider"
)

// Status is the account's administrative state. Only Active accounts may
// be a source or destination of any settlement leg.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusFrozen    Status = "frozen"
	StatusClosed    Status = "closed"
)

// KYCStatus is the account's identity-verification state. KYC must be
// Verified at both invoice admission and settlement post-check.
type KYCStatus string

const (
	KYCPending   KYCStatus = "pending"
	KYCInReview  KYCStatus = "in_review"
	KYCVerified  KYCStatus = "verified"
	KYCRejected  KYCStatus = "rejected"
	KYCExpired   KYCStatus = "expired"
)

// CreditLimitStaleness is the maximum age of a cached credit limit before
// ReserveCredit must re-fetch from the credit-bureau collaborator (spec §4.3).
const CreditLimitStaleness = time.Hour

// SanctionsStaleness is the maximum age of a sanctions snapshot usable at
// any of the three screening checkpoints (submission, acceptance, pre-commit).
const SanctionsStaleness = 6 * time.Hour

// Account is a participant in the settlement network.
type Account struct {
	types.Entity
	ID        id.AccountID `json:"id"`
	Role      Role         `json:"role"`
	Status    Status       `json:"status"`
	KYCStatus KYCStatus    `json:"kyc_status"`
	KYCCheckedAt time.Time `json:"kyc_checked_at"`

	Balance types.Money `json:"balance"`

	CreditLimit       *types.Money `json:"credit_limit,omitempty"`
	CreditLimitCheckedAt time.Time `json:"credit_limit_checked_at"`
	ReservedCredit    types.Money  `json:"reserved_credit"`
	// ReservedAt is the timestamp of the most recent reservation change,
	// used by the scheduler's orphan-reservation sweep (spec §4.10) to
	// find credit held against an invoice that never settled.
	ReservedAt time.Time `json:"reserved_at"`

	SanctionsClear   bool      `json:"sanctions_clear"`
	SanctionsCheckedAt time.Time `json:"sanctions_checked_at"`
}

// IsCreditLimitStale reports whether the cached credit limit is older than
// CreditLimitStaleness as of now.
func (a *Account) IsCreditLimitStale(now time.Time) bool {
	return now.Sub(a.CreditLimitCheckedAt) > CreditLimitStaleness
}

// IsSanctionsStale reports whether the sanctions snapshot is older than
// SanctionsStaleness as of now.
func (a *Account) IsSanctionsStale(now time.Time) bool {
	return now.Sub(a.SanctionsCheckedAt) > SanctionsStaleness
}

// IsSettleable reports whether the account may currently be a source or
// destination of a settlement leg: active status and non-stale, clear
// sanctions screening.
func (a *Account) IsSettleable(now time.Time) bool {
	return a.Status == StatusActive && a.SanctionsClear && !a.IsSanctionsStale(now)
}

// AvailableCredit returns the buyer's unreserved credit headroom. Returns
// a zero Money if no credit limit has ever been set.
func (a *Account) AvailableCredit() types.Money {
	if a.CreditLimit == nil {
		return types.Zero(a.Balance.Currency)
	}
	return a.CreditLimit.Subtract(a.ReservedCredit)
}
