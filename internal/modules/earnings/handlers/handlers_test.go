package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/tipfolio/internal/aggregate"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/fetch"
	"github.com/avramidis/tipfolio/internal/modules/earnings"
)

type fakeMail struct {
	ids []string
	err error
}

func (f *fakeMail) ListMessageIDs(context.Context, string, string) ([]string, error) {
	return f.ids, f.err
}

type fakeFetcher struct {
	messages []*gmail.Message
	err      error
	batches  [][2]int
}

func (f *fakeFetcher) FetchAll(_ context.Context, _ string, _ []string, onProgress fetch.ProgressFunc) ([]*gmail.Message, error) {
	if onProgress != nil {
		for _, b := range f.batches {
			onProgress(b[0], b[1])
		}
	}
	return f.messages, f.err
}

type nopCache struct{}

func (nopCache) Get(string) ([]aggregate.Period, bool, error)        { return nil, false, nil }
func (nopCache) Set(string, []aggregate.Period, time.Duration) error { return nil }

func newTestRouter(mail *fakeMail, fetcher *fakeFetcher) *chi.Mux {
	cfg := earnings.Config{
		ProviderSender: "noreply@payments.example.com",
		SavingsGoal:    decimal.NewFromInt(10000),
		DayTTL:         5 * time.Minute,
		YearTTL:        24 * time.Hour,
	}
	svc := earnings.NewService(mail, fetcher, nopCache{}, cfg, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())
	stream := NewStreamHandler(svc, zerolog.Nop())

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		h.RegisterRoutes(r, stream)
	})
	return r
}

func doRequest(t *testing.T, router *chi.Mux, path string, withToken bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withToken {
		req.Header.Set("Authorization", "Bearer test-token")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetDailyReturnsAggregates(t *testing.T) {
	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	router := newTestRouter(
		&fakeMail{ids: []string{"a"}},
		&fakeFetcher{messages: []*gmail.Message{
			{ID: "a", Date: day, Body: "From: Jane Doe\nAmount: €12.50\n"},
		}},
	)

	rec := doRequest(t, router, "/api/earnings/daily?date=2024-03-15", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Periods     []aggregate.Period `json:"periods"`
			SavingsGoal decimal.Decimal    `json:"savings_goal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data.Periods, 1)
	assert.Equal(t, "2024-03-15", body.Data.Periods[0].Label)
	assert.True(t, body.Data.SavingsGoal.Equal(decimal.NewFromInt(10000)))
}

func TestGetDailyRejectsMissingToken(t *testing.T) {
	router := newTestRouter(&fakeMail{}, &fakeFetcher{})
	rec := doRequest(t, router, "/api/earnings/daily", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetDailyRejectsBadDate(t *testing.T) {
	router := newTestRouter(&fakeMail{}, &fakeFetcher{})
	rec := doRequest(t, router, "/api/earnings/daily?date=15-03-2024", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetMonthlyMapsAuthError(t *testing.T) {
	router := newTestRouter(&fakeMail{ids: []string{"a"}}, &fakeFetcher{err: gmail.ErrAuthExpired})
	rec := doRequest(t, router, "/api/earnings/monthly?year=2024", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "sign in again")
}

func TestGetMonthlyMapsRateLimit(t *testing.T) {
	router := newTestRouter(&fakeMail{ids: []string{"a"}}, &fakeFetcher{err: gmail.ErrRateLimited})
	rec := doRequest(t, router, "/api/earnings/monthly?year=2024", true)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetMonthlyRejectsBadYear(t *testing.T) {
	router := newTestRouter(&fakeMail{}, &fakeFetcher{})
	rec := doRequest(t, router, "/api/earnings/monthly?year=banana", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamEmitsProgressThenData(t *testing.T) {
	day := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	router := newTestRouter(
		&fakeMail{ids: []string{"a", "b"}},
		&fakeFetcher{
			messages: []*gmail.Message{
				{ID: "a", Date: day, Body: "From: Jane Doe\nAmount: €12.50\n"},
			},
			batches: [][2]int{{10, 23}, {20, 23}, {23, 23}},
		},
	)

	rec := doRequest(t, router, "/api/earnings/monthly/stream?year=2024", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 4)
	assert.Equal(t, "progress", events[0].name)
	assert.Contains(t, events[0].data, `"current":10`)
	assert.Equal(t, "progress", events[2].name)
	assert.Contains(t, events[2].data, `"current":23`)
	assert.Equal(t, "data", events[3].name)
	assert.Contains(t, events[3].data, `"year":2024`)
}

func TestStreamEmitsErrorEvent(t *testing.T) {
	router := newTestRouter(&fakeMail{ids: []string{"a"}}, &fakeFetcher{err: gmail.ErrRateLimited})

	rec := doRequest(t, router, "/api/earnings/monthly/stream?year=2024", true)
	require.Equal(t, http.StatusOK, rec.Code)

	events := parseEvents(rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].name)
	assert.Contains(t, events[0].data, "rate_limited")
}

type sseEvent struct {
	name string
	data string
}

func parseEvents(raw string) []sseEvent {
	var events []sseEvent
	var current sseEvent
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	return events
}
