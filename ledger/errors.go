package ledger

import "errors"

var (
	ErrChainBroken   = errors.New("ledger: hash chain broken")
	ErrSeqConflict   = errors.New("ledger: sequence number conflict")
	ErrImbalance     = errors.New("ledger: reconciliation imbalance")
)
