package exchange

import "errors"

var (
	// ErrDataUnavailable marks transient failures: timeouts, non-2xx
	// statuses, malformed payloads. Callers skip the symbol for the cycle.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrUnknownSymbol marks a permanent rejection of the symbol itself.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrOrderRejected marks an order the exchange refused; not retried.
	ErrOrderRejected = errors.New("order rejected")

	// ErrMissingCredentials marks a signed call attempted without API
	// keys configured; not retried.
	ErrMissingCredentials = errors.New("api credentials not set")
)
