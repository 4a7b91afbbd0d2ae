// Package periodcache provides persistent caching of computed period
// aggregates, keyed by query signature with a time-based expiry.
package periodcache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/avramidis/tipfolio/internal/aggregate"
)

// DayKey builds the query signature for a single day's aggregate.
func DayKey(date time.Time) string {
	return "day:" + date.Format("2006-01-02")
}

// YearKey builds the query signature for a year's monthly breakdown.
func YearKey(year int) string {
	return fmt.Sprintf("year:%d", year)
}

// Repository provides cache operations over the period_cache table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new period cache repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "period-cache").Logger(),
	}
}

// cachedPeriod is the msgpack wire form of an aggregate.Period.
// Totals travel as strings because decimal.Decimal has no exported fields.
type cachedPeriod struct {
	Label string    `msgpack:"label"`
	Total string    `msgpack:"total"`
	Count int       `msgpack:"count"`
	Start time.Time `msgpack:"start"`
}

// Get returns the cached payload for a key, or ok=false when absent.
// An entry whose expiry has passed counts as absent and is evicted as a side
// effect of the lookup.
func (r *Repository) Get(key string) ([]aggregate.Period, bool, error) {
	var payload []byte
	var expiresAt int64

	err := r.db.QueryRow(
		"SELECT payload, expires_at FROM period_cache WHERE key = ?", key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}

	if time.Now().Unix() >= expiresAt {
		// Lazy eviction
		if err := r.Delete(key); err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("Failed to evict expired cache entry")
		}
		return nil, false, nil
	}

	var cached []cachedPeriod
	if err := msgpack.Unmarshal(payload, &cached); err != nil {
		// A corrupt payload behaves like a miss; the entry will be replaced
		r.log.Warn().Err(err).Str("key", key).Msg("Failed to decode cache payload, treating as miss")
		return nil, false, nil
	}

	periods := make([]aggregate.Period, 0, len(cached))
	for _, c := range cached {
		total, err := decimal.NewFromString(c.Total)
		if err != nil {
			r.log.Warn().Err(err).Str("key", key).Msg("Invalid total in cache payload, treating as miss")
			return nil, false, nil
		}
		periods = append(periods, aggregate.Period{
			Label: c.Label,
			Total: total,
			Count: c.Count,
			Start: c.Start,
		})
	}

	return periods, true, nil
}

// Set stores a payload with expiration = now + ttl, replacing any previous
// entry for the key atomically.
func (r *Repository) Set(key string, periods []aggregate.Period, ttl time.Duration) error {
	cached := make([]cachedPeriod, 0, len(periods))
	for _, p := range periods {
		cached = append(cached, cachedPeriod{
			Label: p.Label,
			Total: p.Total.String(),
			Count: p.Count,
			Start: p.Start,
		})
	}

	payload, err := msgpack.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	now := time.Now().Unix()
	_, err = r.db.Exec(
		"INSERT OR REPLACE INTO period_cache (key, payload, created_at, expires_at) VALUES (?, ?, ?, ?)",
		key, payload, now, now+int64(ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}

	return nil
}

// Delete removes a specific entry.
func (r *Repository) Delete(key string) error {
	if _, err := r.db.Exec("DELETE FROM period_cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// DeleteExpired removes all rows whose expiry has passed.
// Returns the number of rows deleted.
func (r *Repository) DeleteExpired() (int64, error) {
	result, err := r.db.Exec("DELETE FROM period_cache WHERE expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}

// Count returns the number of entries currently stored, expired or not.
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow("SELECT COUNT(*) FROM period_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
