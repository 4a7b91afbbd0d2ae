package gmail

import (
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// decodeWebSafeBase64 decodes the URL-safe base64 variant used for message bodies:
// reverse the URL-safe substitutions, restore padding, then standard-decode.
func decodeWebSafeBase64(data string) (string, error) {
	s := strings.ReplaceAll(data, "-", "+")
	s = strings.ReplaceAll(s, "_", "/")
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}

	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("failed to decode message body: %w", err)
	}
	return string(decoded), nil
}

// extractBody picks the message text from a payload.
// Multipart messages prefer the first text/plain part, then text/html;
// single-part messages use the top-level body directly.
func extractBody(payload apiPart) (string, error) {
	if len(payload.Parts) == 0 {
		return decodeWebSafeBase64(payload.Body.Data)
	}

	if part := findPart(payload.Parts, "text/plain"); part != nil {
		return decodeWebSafeBase64(part.Body.Data)
	}
	if part := findPart(payload.Parts, "text/html"); part != nil {
		return decodeWebSafeBase64(part.Body.Data)
	}

	// Fall back to the first part that carries data at all
	for i := range payload.Parts {
		if payload.Parts[i].Body.Data != "" {
			return decodeWebSafeBase64(payload.Parts[i].Body.Data)
		}
	}

	return "", fmt.Errorf("message has no decodable part")
}

// findPart walks parts depth-first for the first part of the given MIME type.
func findPart(parts []apiPart, mimeType string) *apiPart {
	for i := range parts {
		if strings.EqualFold(parts[i].MimeType, mimeType) && parts[i].Body.Data != "" {
			return &parts[i]
		}
		if found := findPart(parts[i].Parts, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// headerMap lowercases header names for case-insensitive lookup.
func headerMap(headers []apiHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[strings.ToLower(h.Name)] = h.Value
	}
	return m
}

// parseDateHeader parses an RFC 2822 Date header.
// Returns the zero time when the header is missing or malformed; callers
// exclude such messages from aggregates.
func parseDateHeader(headers map[string]string) time.Time {
	raw, ok := headers["date"]
	if !ok || raw == "" {
		return time.Time{}
	}

	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// encodeWebSafeBase64 encodes raw message bytes the way the drafts API expects.
func encodeWebSafeBase64(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}
