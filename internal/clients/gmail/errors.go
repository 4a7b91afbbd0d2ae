package gmail

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrAuthExpired signals the access token was rejected by the mail provider.
	// Never retried here - the session layer decides whether to force re-authentication.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrRateLimited signals the provider is throttling requests.
	ErrRateLimited = errors.New("rate limited")
)

// statusError maps an HTTP status code to the error taxonomy.
func statusError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("gmail API returned status %d: %w", statusCode, ErrAuthExpired)
	case http.StatusTooManyRequests:
		return fmt.Errorf("gmail API returned status %d: %w", statusCode, ErrRateLimited)
	default:
		return fmt.Errorf("gmail API returned status %d", statusCode)
	}
}
