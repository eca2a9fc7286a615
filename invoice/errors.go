package invoice

import "errors"

var (
	ErrNotFound        = errors.New("invoice: not found")
	ErrHashExists       = errors.New("invoice: duplicate content hash")
	ErrInvalidAmount   = errors.New("invoice: amount out of bounds")
	ErrInvalidTerms    = errors.New("invoice: terms not in allowed set")
	ErrInvalidTransition = errors.New("invoice: transition not allowed from current status")
)
