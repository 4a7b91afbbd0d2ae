package earnings

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avramidis/tipfolio/internal/aggregate"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/fetch"
)

type fakeMail struct {
	queries []string
	ids     []string
	err     error
}

func (f *fakeMail) ListMessageIDs(_ context.Context, _ string, query string) ([]string, error) {
	f.queries = append(f.queries, query)
	return f.ids, f.err
}

type fakeFetcher struct {
	messages []*gmail.Message
	err      error
	calls    int
}

func (f *fakeFetcher) FetchAll(_ context.Context, _ string, _ []string, _ fetch.ProgressFunc) ([]*gmail.Message, error) {
	f.calls++
	return f.messages, f.err
}

type memCache struct {
	entries map[string][]aggregate.Period
	sets    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]aggregate.Period)}
}

func (c *memCache) Get(key string) ([]aggregate.Period, bool, error) {
	periods, ok := c.entries[key]
	return periods, ok, nil
}

func (c *memCache) Set(key string, periods []aggregate.Period, _ time.Duration) error {
	c.entries[key] = periods
	c.sets++
	return nil
}

func notification(date time.Time, amount string) *gmail.Message {
	return &gmail.Message{
		ID:   fmt.Sprintf("msg-%d", date.Unix()),
		Date: date,
		Body: fmt.Sprintf("From: Jane Doe\nAmount: €%s\n", amount),
	}
}

func newTestService(mail *fakeMail, fetcher *fakeFetcher, cache Cache) *Service {
	cfg := Config{
		ProviderSender: "noreply@payments.example.com",
		SavingsGoal:    decimal.NewFromInt(10000),
		DayTTL:         5 * time.Minute,
		YearTTL:        24 * time.Hour,
	}
	return NewService(mail, fetcher, cache, cfg, zerolog.Nop())
}

func TestDailyAggregatesTransfers(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mail := &fakeMail{ids: []string{"a", "b"}}
	fetcher := &fakeFetcher{messages: []*gmail.Message{
		notification(day.Add(9*time.Hour), "12.50"),
		notification(day.Add(17*time.Hour), "7.25"),
	}}

	svc := newTestService(mail, fetcher, newMemCache())

	periods, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, "2024-03-15", periods[0].Label)
	assert.True(t, periods[0].Total.Equal(decimal.RequireFromString("19.75")))
	assert.Equal(t, 2, periods[0].Count)
}

func TestDailyQueryBoundsSingleDay(t *testing.T) {
	day := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	mail := &fakeMail{}
	svc := newTestService(mail, &fakeFetcher{}, newMemCache())

	_, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)

	require.Len(t, mail.queries, 1)
	assert.Equal(t, "from:noreply@payments.example.com after:2024/12/31 before:2025/01/01", mail.queries[0])
}

func TestMonthlyReturnsTwelveEntries(t *testing.T) {
	mail := &fakeMail{ids: []string{"a"}}
	fetcher := &fakeFetcher{messages: []*gmail.Message{
		notification(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC), "100.00"),
	}}
	svc := newTestService(mail, fetcher, newMemCache())

	periods, err := svc.Monthly(context.Background(), "token", 2024, nil)
	require.NoError(t, err)
	require.Len(t, periods, 12)
	assert.Equal(t, "June 2024", periods[5].Label)
	assert.True(t, periods[5].Total.Equal(decimal.NewFromInt(100)))
	assert.True(t, periods[0].Total.IsZero())
}

func TestMonthlyQuerySpansYear(t *testing.T) {
	mail := &fakeMail{}
	svc := newTestService(mail, &fakeFetcher{}, newMemCache())

	_, err := svc.Monthly(context.Background(), "token", 2023, nil)
	require.NoError(t, err)

	require.Len(t, mail.queries, 1)
	assert.Equal(t, "from:noreply@payments.example.com after:2023/01/01 before:2024/01/01", mail.queries[0])
}

func TestCacheHitSkipsFetch(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mail := &fakeMail{ids: []string{"a"}}
	fetcher := &fakeFetcher{messages: []*gmail.Message{notification(day.Add(time.Hour), "5.00")}}
	cache := newMemCache()
	svc := newTestService(mail, fetcher, cache)

	_, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls)

	_, err = svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls, "second request should be answered from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestMessagesWithoutDateAreSkipped(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	undated := &gmail.Message{ID: "undated", Body: "From: Jane\nAmount: €50.00\n"}
	mail := &fakeMail{ids: []string{"a", "b"}}
	fetcher := &fakeFetcher{messages: []*gmail.Message{
		undated,
		notification(day.Add(time.Hour), "10.00"),
	}}
	svc := newTestService(mail, fetcher, newMemCache())

	periods, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	require.Len(t, periods, 1)
	assert.Equal(t, 1, periods[0].Count)
}

func TestNonNotificationMessagesAreIgnored(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mail := &fakeMail{ids: []string{"a", "b"}}
	fetcher := &fakeFetcher{messages: []*gmail.Message{
		{ID: "newsletter", Date: day.Add(time.Hour), Body: "Weekly digest, nothing to see"},
		notification(day.Add(2*time.Hour), "3.00"),
	}}
	svc := newTestService(mail, fetcher, newMemCache())

	periods, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, periods[0].Count)
	assert.True(t, periods[0].Total.Equal(decimal.NewFromInt(3)))
}

func TestFetchErrorPropagates(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	mail := &fakeMail{ids: []string{"a"}}
	fetcher := &fakeFetcher{err: gmail.ErrRateLimited}
	svc := newTestService(mail, fetcher, newMemCache())

	_, err := svc.Daily(context.Background(), "token", day, nil)
	require.ErrorIs(t, err, gmail.ErrRateLimited)
}

func TestStaleGenerationDoesNotOverwriteCache(t *testing.T) {
	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cache := newMemCache()
	svc := newTestService(&fakeMail{}, &fakeFetcher{}, cache)

	key := "day:2024-03-15"
	older := svc.nextGeneration(key)
	_ = svc.nextGeneration(key)

	assert.False(t, svc.isCurrentGeneration(key, older))

	_, err := svc.Daily(context.Background(), "token", day, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)
}
