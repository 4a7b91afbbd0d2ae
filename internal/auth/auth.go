// Package auth extracts caller credentials from HTTP requests.
package auth

import (
	"net/http"
	"strings"
)

// BearerToken returns the OAuth access token from the Authorization header.
// Returns false when the header is absent or not a bearer credential.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}
