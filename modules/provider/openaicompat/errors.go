package openaicompat

import "errors"

// Sentinel errors for classifying provider failures. All of them are
// recovered locally by the relay (the user sees the apology string);
// the classification exists for logs and tests.
var (
	// ErrProviderDown marks transport failures and 5xx responses.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrRateLimit marks HTTP 429 responses.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrAuthentication marks HTTP 401/403 responses.
	ErrAuthentication = errors.New("provider authentication failed")

	// ErrMalformedResponse marks 2xx responses whose body cannot be used.
	ErrMalformedResponse = errors.New("provider returned malformed response")
)
