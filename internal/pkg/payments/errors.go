package payments

import "errors"

// Sentinel errors returned by the payment engine. The HTTP layer maps these
// to status codes; everything else is treated as an internal failure.
var (
	ErrLocationNotFound = errors.New("location not found")
	ErrLocationInactive = errors.New("location is not active")

	ErrPlanNotFound  = errors.New("price plan not found")
	ErrPlanInactive  = errors.New("price plan is inactive")
	ErrQuotaExceeded = errors.New("price plan quota exceeded")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrExternalIDTaken     = errors.New("external id already exists")

	ErrCallbackTokenUnset   = errors.New("callback token not configured")
	ErrMissingCallbackToken = errors.New("missing callback token")
	ErrInvalidCallbackToken = errors.New("invalid callback token")
	ErrUnknownOutcome       = errors.New("unknown webhook outcome")

	// ErrProviderRefMismatch means a webhook tried to reattribute a
	// transaction to a different provider payment. Never applied, always
	// logged as an integrity anomaly.
	ErrProviderRefMismatch = errors.New("provider reference mismatch")

	// ErrAlreadyTerminal rejects a transition that targets a terminal
	// transaction with a different terminal state.
	ErrAlreadyTerminal = errors.New("transaction already in a terminal state")

	// ErrInvalidTransition indicates a programming error: a transition that
	// the state machine does not define at all.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrContention is a retryable lock wait/deadlock failure. The HTTP
	// layer retries the reservation once before surfacing it.
	ErrContention = errors.New("storage contention")
)
