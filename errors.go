package settlenet

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound     = errors.New("settlenet: not found")
	ErrAlreadyExists = errors.New("settlenet: already exists")
	ErrInvalidInput = errors.New("settlenet: invalid input")
	ErrUnauthorized = errors.New("settlenet: unauthorized")
	ErrForbidden    = errors.New("settlenet: forbidden")

	// Account errors
	ErrAccountNotFound   = errors.New("settlenet: account not found")
	ErrAccountNotActive  = errors.New("settlenet: account is not active")
	ErrKYCNotVerified    = errors.New("settlenet: KYC not verified")
	ErrSanctionsBlocked  = errors.New("settlenet: account blocked by sanctions screening")
	ErrSanctionsStale    = errors.New("settlenet: sanctions snapshot stale")
	ErrInsufficientCredit = errors.New("settlenet: insufficient credit")
	ErrSameAccount       = errors.New("settlenet: supplier and buyer must differ")

	// Invoice errors
	ErrInvoiceNotFound    = errors.New("settlenet: invoice not found")
	ErrDuplicateHash      = errors.New("settlenet: duplicate invoice hash")
	ErrAmountOutOfRange   = errors.New("settlenet: amount out of range")
	ErrInvalidTerms       = errors.New("settlenet: invalid terms")
	ErrLineItemSumMismatch = errors.New("settlenet: line items do not sum to invoice amount")
	ErrInvalidTransition  = errors.New("settlenet: invalid status transition")

	// Pricing / auction errors
	ErrQuoteNotFound  = errors.New("settlenet: quote not found")
	ErrQuoteExpired   = errors.New("settlenet: quote expired")
	ErrQuoteUsed      = errors.New("settlenet: quote already used")
	ErrNoBids         = errors.New("settlenet: no eligible bids")
	ErrBidExpired     = errors.New("settlenet: bid expired")
	ErrBidCapacity    = errors.New("settlenet: bid capacity insufficient")
	ErrRateOutOfRange = errors.New("settlenet: discount rate out of range")

	// Fraud errors
	ErrFraudRejected = errors.New("settlenet: rejected by fraud gate")
	ErrScoreStale    = errors.New("settlenet: fraud score stale")

	// Settlement errors
	ErrSettlementExists   = errors.New("settlenet: settlement already exists for invoice")
	ErrSettlementConflict = errors.New("settlenet: settlement conflict")
	ErrSettlementTimeout  = errors.New("settlenet: settlement exceeded time budget")
	ErrLegFailed          = errors.New("settlenet: settlement leg failed")
	ErrIndeterminate      = errors.New("settlenet: settlement outcome indeterminate")

	// Invariant / ledger errors
	ErrInvariantViolation = errors.New("settlenet: invariant violation")
	ErrChainBroken        = errors.New("settlenet: ledger hash chain broken")
	ErrImbalance          = errors.New("settlenet: ledger out of balance")
	ErrSystemFrozen       = errors.New("settlenet: system frozen")

	// Rail errors
	ErrRailUnavailable = errors.New("settlenet: no healthy rail adapter")
	ErrRailPrepare     = errors.New("settlenet: rail prepare failed")
	ErrRailCommit      = errors.New("settlenet: rail commit failed")

	// Store errors
	ErrStoreNotReady     = errors.New("settlenet: store not ready")
	ErrStoreClosed       = errors.New("settlenet: store is closed")
	ErrTransactionFailed = errors.New("settlenet: transaction failed")
	ErrMigrationFailed   = errors.New("settlenet: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("settlenet: validation failed for %s: %s", e.Field, e.Message)
}

// MultiError represents multiple errors that occurred.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "settlenet: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("settlenet: %d errors occurred", len(e.Errors))
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// First returns the first error or nil.
func (e MultiError) First() error {
	if len(e.Errors) > 0 {
		return e.Errors[0]
	}
	return nil
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrQuoteNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady) ||
		errors.Is(err, ErrTransactionFailed) ||
		errors.Is(err, ErrIndeterminate) ||
		errors.Is(err, ErrRailUnavailable)
}

// IsFreezeTrigger reports whether err represents a failure class that
// must escalate to a system freeze rather than a simple rollback (spec §7).
func IsFreezeTrigger(err error) bool {
	return errors.Is(err, ErrImbalance) || errors.Is(err, ErrChainBroken)
}
