package audits

import "errors"

// Request-level errors returned synchronously by the façade. Infrastructure
// failures are wrapped separately so callers can tell them apart.
var (
	ErrContractNotFound = errors.New("contract not found")
	ErrAccessDenied     = errors.New("access denied")
	ErrAuditCreate      = errors.New("audit record create failed")
	ErrNotFound         = errors.New("audit not found")
	ErrAlreadyTerminal  = errors.New("audit already in a terminal state")
	ErrInvalidKind      = errors.New("invalid analysis kind")
)
