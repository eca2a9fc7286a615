package account

import "errors"

var (
	ErrNotFound            = errors.New("account: not found")
	ErrInsufficientCredit  = errors.New("account: insufficient credit")
	ErrNotActive           = errors.New("account: not active")
	ErrSanctionsBlocked    = errors.New("account: blocked by sanctions screening")
)
