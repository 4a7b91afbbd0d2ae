package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(zerolog.Nop())
	c.baseURL = srv.URL
	return c
}

func TestListMessageIDsFollowsPagination(t *testing.T) {
	var tokens []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "from:payments after:2024/01/01", r.URL.Query().Get("q"))

		tokens = append(tokens, r.URL.Query().Get("pageToken"))
		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(apiMessageList{
				Messages:      []apiMessageRef{{ID: "m1"}, {ID: "m2"}},
				NextPageToken: "page-2",
			})
		case "page-2":
			json.NewEncoder(w).Encode(apiMessageList{
				Messages: []apiMessageRef{{ID: "m3"}},
			})
		}
	})

	ids, err := client.ListMessageIDs(context.Background(), "test-token", "from:payments after:2024/01/01")
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, []string{"", "page-2"}, tokens)
}

func TestGetMessageDecodesBodyAndDate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages/m1", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))

		json.NewEncoder(w).Encode(apiMessage{
			ID: "m1",
			Payload: apiPart{
				MimeType: "text/plain",
				Headers:  []apiHeader{{Name: "Date", Value: "Fri, 15 Mar 2024 18:30:00 +0000"}},
				Body:     apiBody{Data: webSafe("From: Jane Doe\nAmount: €12.50")},
			},
		})
	})

	msg, err := client.GetMessage(context.Background(), "test-token", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.Contains(t, msg.Body, "Jane Doe")
	assert.Equal(t, 2024, msg.Date.Year())
}

func TestAuthFailureMapsToSentinel(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid credentials", status)
		})

		_, err := client.GetMessage(context.Background(), "bad-token", "m1")
		require.ErrorIs(t, err, ErrAuthExpired)
	}
}

func TestRateLimitMapsToSentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := client.ListMessageIDs(context.Background(), "test-token", "q")
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestServerErrorIsNotASentinel(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.GetMessage(context.Background(), "test-token", "m1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthExpired)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

func TestCreateDraftSendsRawMessage(t *testing.T) {
	var received struct {
		Message struct {
			Raw string `json:"raw"`
		} `json:"message"`
	}

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/drafts", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(apiDraftRef{ID: "d1", Message: apiMessageRef{ID: "m1"}})
	})

	ref, err := client.CreateDraft(context.Background(), "test-token", []byte("Subject: sync\n\n{}"))
	require.NoError(t, err)
	assert.Equal(t, "d1", ref.ID)
	assert.Equal(t, "m1", ref.MessageID)

	decoded, err := decodeWebSafeBase64(received.Message.Raw)
	require.NoError(t, err)
	assert.Equal(t, "Subject: sync\n\n{}", decoded)
}

func TestUpdateDraftTargetsExistingDraft(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/drafts/d1", r.URL.Path)
		json.NewEncoder(w).Encode(apiDraftRef{ID: "d1", Message: apiMessageRef{ID: "m2"}})
	})

	ref, err := client.UpdateDraft(context.Background(), "test-token", "d1", []byte("Subject: sync\n\n{}"))
	require.NoError(t, err)
	assert.Equal(t, "m2", ref.MessageID)
}

func TestListDrafts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/drafts", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("q"), "subject:")
		json.NewEncoder(w).Encode(apiDraftList{
			Drafts: []apiDraftRef{{ID: "d1", Message: apiMessageRef{ID: "m1"}}},
		})
	})

	refs, err := client.ListDrafts(context.Background(), "test-token", `subject:"sync-data"`)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "d1", refs[0].ID)
}
