package settlement

import "errors"

var (
	ErrSettlementExists = errors.New("settlement: already exists for invoice")
	ErrNotFound         = errors.New("settlement: not found")
	ErrPreCheckFailed   = errors.New("settlement: pre-check failed")
	ErrPrepareRejected  = errors.New("settlement: prepare rejected")
	ErrPrepareTimeout   = errors.New("settlement: prepare timed out")
	ErrCommitFailed     = errors.New("settlement: commit failed")
	ErrPostCheckFailed  = errors.New("settlement: post-check failed")
)
