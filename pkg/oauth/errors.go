package oauth

import "fmt"

// StateMismatchError indicates the authorization callback carried a state
// parameter different from the one sent, so the callback is rejected.
type StateMismatchError struct {
	// Provider is the provider being authenticated
	Provider string
}

// Error implements the error interface.
func (e *StateMismatchError) Error() string {
	return fmt.Sprintf("oauth state mismatch for provider %q; authorization response rejected", e.Provider)
}

// ExchangeError indicates the token endpoint rejected a code exchange or
// refresh request.
type ExchangeError struct {
	// Provider is the provider whose token endpoint failed
	Provider string

	// StatusCode is the HTTP status from the token endpoint, 0 when the
	// request never completed
	StatusCode int

	// Body is the token endpoint's error body, verbatim
	Body string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *ExchangeError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("oauth token exchange failed for provider %q (status %d): %s",
			e.Provider, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("oauth token exchange failed for provider %q: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ExchangeError) Unwrap() error {
	return e.Cause
}

// LoginTimeoutError indicates the interactive login did not complete within
// its time bound. Stored credentials are unaffected.
type LoginTimeoutError struct {
	// Provider is the provider being authenticated
	Provider string
}

// Error implements the error interface.
func (e *LoginTimeoutError) Error() string {
	return fmt.Sprintf("oauth login for provider %q timed out waiting for the browser callback", e.Provider)
}
