package api

import (
	"errors"
	"net/http"

	settlenet "github.com/flowcap/settlenet"
)

// httpError pairs a status code with the body written to the caller. It
// lets handlers return a domain error and have statusFor classify it,
// while still allowing a handler to force a specific status (e.g. a
// parse failure) without going through the domain error table.
type httpError struct {
	status int
	err    error
}

func (e *httpError) Error() string { return e.err.Error() }

func badRequest(err error) *httpError { return &httpError{status: http.StatusBadRequest, err: err} }

// statusFor classifies a domain error into the HTTP status implied by
// spec §7's error kinds: validation/freshness are 4xx and recoverable by
// the caller, authorization is 403, consistency failures (system
// freeze) are 503 since the system itself is refusing new work, and
// anything unrecognized falls back to 500.
func statusFor(err error) int {
	var he *httpError
	if errors.As(err, &he) {
		return he.status
	}

	switch {
	case errors.Is(err, settlenet.ErrUnauthorized), errors.Is(err, settlenet.ErrForbidden):
		return http.StatusForbidden
	case settlenet.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, settlenet.ErrSameAccount),
		errors.Is(err, settlenet.ErrInvalidTerms),
		errors.Is(err, settlenet.ErrAmountOutOfRange),
		errors.Is(err, settlenet.ErrDuplicateHash),
		errors.Is(err, settlenet.ErrInvalidInput),
		errors.Is(err, settlenet.ErrLineItemSumMismatch),
		errors.Is(err, settlenet.ErrRateOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, settlenet.ErrAccountNotActive),
		errors.Is(err, settlenet.ErrKYCNotVerified),
		errors.Is(err, settlenet.ErrSanctionsBlocked),
		errors.Is(err, settlenet.ErrInsufficientCredit),
		errors.Is(err, settlenet.ErrFraudRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlenet.ErrQuoteExpired),
		errors.Is(err, settlenet.ErrQuoteUsed),
		errors.Is(err, settlenet.ErrScoreStale),
		errors.Is(err, settlenet.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, settlenet.ErrNoBids),
		errors.Is(err, settlenet.ErrBidExpired),
		errors.Is(err, settlenet.ErrBidCapacity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, settlenet.ErrSystemFrozen),
		errors.Is(err, settlenet.ErrImbalance),
		errors.Is(err, settlenet.ErrChainBroken),
		errors.Is(err, settlenet.ErrRailUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape written for any non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}
