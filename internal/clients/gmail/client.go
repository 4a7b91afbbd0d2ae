// Package gmail provides a thin client for the Gmail REST API.
// The access token is passed explicitly into every call - the client holds
// no ambient credential state.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1/users/me"

// Client talks to the Gmail API for one user ("me").
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Gmail API client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With().Str("client", "gmail").Logger(),
	}
}

// ListMessageIDs returns the ids of all messages matching the Gmail search query.
// Pagination is followed until exhausted.
func (c *Client) ListMessageIDs(ctx context.Context, token, query string) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("maxResults", "100")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var list apiMessageList
		if err := c.doGet(ctx, token, "/messages?"+params.Encode(), &list); err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, m := range list.Messages {
			ids = append(ids, m.ID)
		}

		if list.NextPageToken == "" {
			break
		}
		pageToken = list.NextPageToken
	}

	c.log.Debug().Str("query", query).Int("count", len(ids)).Msg("Listed messages")
	return ids, nil
}

// GetMessage fetches one message and decodes its body and date header.
// A missing or malformed Date header leaves Message.Date zero; callers decide
// whether to skip the message.
func (c *Client) GetMessage(ctx context.Context, token, id string) (*Message, error) {
	var raw apiMessage
	if err := c.doGet(ctx, token, "/messages/"+id+"?format=full", &raw); err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	return c.decodeMessage(&raw)
}

// ListDrafts returns references to drafts matching the Gmail search query.
func (c *Client) ListDrafts(ctx context.Context, token, query string) ([]DraftRef, error) {
	params := url.Values{}
	params.Set("q", query)

	var list apiDraftList
	if err := c.doGet(ctx, token, "/drafts?"+params.Encode(), &list); err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}

	refs := make([]DraftRef, 0, len(list.Drafts))
	for _, d := range list.Drafts {
		refs = append(refs, DraftRef{ID: d.ID, MessageID: d.Message.ID})
	}
	return refs, nil
}

// GetDraft fetches one draft with its decoded message.
func (c *Client) GetDraft(ctx context.Context, token, id string) (*Message, error) {
	var raw apiDraft
	if err := c.doGet(ctx, token, "/drafts/"+id+"?format=full", &raw); err != nil {
		return nil, fmt.Errorf("failed to get draft %s: %w", id, err)
	}

	return c.decodeMessage(&raw.Message)
}

// CreateDraft creates a new draft from a raw RFC 2822 message.
func (c *Client) CreateDraft(ctx context.Context, token string, raw []byte) (*DraftRef, error) {
	body := map[string]interface{}{
		"message": map[string]string{"raw": encodeWebSafeBase64(raw)},
	}

	var created apiDraftRef
	if err := c.doJSON(ctx, token, http.MethodPost, "/drafts", body, &created); err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	return &DraftRef{ID: created.ID, MessageID: created.Message.ID}, nil
}

// UpdateDraft replaces an existing draft's message in place.
func (c *Client) UpdateDraft(ctx context.Context, token, id string, raw []byte) (*DraftRef, error) {
	body := map[string]interface{}{
		"message": map[string]string{"raw": encodeWebSafeBase64(raw)},
	}

	var updated apiDraftRef
	if err := c.doJSON(ctx, token, http.MethodPut, "/drafts/"+id, body, &updated); err != nil {
		return nil, fmt.Errorf("failed to update draft %s: %w", id, err)
	}

	return &DraftRef{ID: updated.ID, MessageID: updated.Message.ID}, nil
}

// decodeMessage converts a wire message into the decoded form.
func (c *Client) decodeMessage(raw *apiMessage) (*Message, error) {
	headers := headerMap(raw.Payload.Headers)

	body, err := extractBody(raw.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", raw.ID, err)
	}

	return &Message{
		ID:      raw.ID,
		Headers: headers,
		Date:    parseDateHeader(headers),
		Body:    body,
	}, nil
}

// doGet performs an authenticated GET and decodes the JSON response into out.
func (c *Client) doGet(ctx context.Context, token, path string, out interface{}) error {
	return c.doJSON(ctx, token, http.MethodGet, path, nil, out)
}

// doJSON performs an authenticated request with an optional JSON body.
func (c *Client) doJSON(ctx context.Context, token, method, path string, in, out interface{}) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		bodyStr := string(body)
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "..."
		}
		c.log.Error().
			Int("status_code", resp.StatusCode).
			Str("method", method).
			Str("path", path).
			Str("response_body", bodyStr).
			Msg("Gmail API returned non-2xx status")
		return statusError(resp.StatusCode)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
