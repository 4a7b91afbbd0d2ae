// Package earnings turns payment notification emails into per-period totals.
package earnings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avramidis/tipfolio/internal/aggregate"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/extract"
	"github.com/avramidis/tipfolio/internal/fetch"
	"github.com/avramidis/tipfolio/internal/periodcache"
)

// MailClient lists message ids matching a search query.
type MailClient interface {
	ListMessageIDs(ctx context.Context, token, query string) ([]string, error)
}

// Fetcher downloads full messages for a set of ids.
type Fetcher interface {
	FetchAll(ctx context.Context, token string, ids []string, onProgress fetch.ProgressFunc) ([]*gmail.Message, error)
}

// Cache stores aggregated periods under a signature key.
type Cache interface {
	Get(key string) ([]aggregate.Period, bool, error)
	Set(key string, periods []aggregate.Period, ttl time.Duration) error
}

// Config holds the service configuration.
type Config struct {
	ProviderSender string
	SavingsGoal    decimal.Decimal
	DayTTL         time.Duration
	YearTTL        time.Duration
}

// Service computes daily and monthly earnings from inbox messages.
type Service struct {
	mail    MailClient
	fetcher Fetcher
	cache   Cache
	cfg     Config
	log     zerolog.Logger

	genMu       sync.Mutex
	generations map[string]uint64
}

// NewService creates a new earnings service.
func NewService(mail MailClient, fetcher Fetcher, cache Cache, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		mail:        mail,
		fetcher:     fetcher,
		cache:       cache,
		cfg:         cfg,
		log:         log.With().Str("component", "earnings").Logger(),
		generations: make(map[string]uint64),
	}
}

// SavingsGoal returns the configured yearly savings goal.
func (s *Service) SavingsGoal() decimal.Decimal {
	return s.cfg.SavingsGoal
}

// Daily returns the aggregate for a single calendar day.
func (s *Service) Daily(ctx context.Context, token string, date time.Time, onProgress fetch.ProgressFunc) ([]aggregate.Period, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	key := periodcache.DayKey(day)
	query := s.buildQuery(day, day.AddDate(0, 0, 1))

	return s.fetchPeriods(ctx, token, key, query, s.cfg.DayTTL, onProgress, func(records []aggregate.Record) []aggregate.Period {
		return aggregate.Daily(day, day, records)
	})
}

// Monthly returns twelve month aggregates for a calendar year.
func (s *Service) Monthly(ctx context.Context, token string, year int, onProgress fetch.ProgressFunc) ([]aggregate.Period, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	key := periodcache.YearKey(year)
	query := s.buildQuery(start, start.AddDate(1, 0, 0))

	return s.fetchPeriods(ctx, token, key, query, s.cfg.YearTTL, onProgress, func(records []aggregate.Record) []aggregate.Period {
		return aggregate.Monthly(year, records)
	})
}

func (s *Service) fetchPeriods(
	ctx context.Context,
	token, key, query string,
	ttl time.Duration,
	onProgress fetch.ProgressFunc,
	aggregateFn func([]aggregate.Record) []aggregate.Period,
) ([]aggregate.Period, error) {
	if periods, ok, err := s.cache.Get(key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, refetching")
	} else if ok {
		s.log.Debug().Str("key", key).Msg("Cache hit")
		return periods, nil
	}

	generation := s.nextGeneration(key)

	ids, err := s.mail.ListMessageIDs(ctx, token, query)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	messages, err := s.fetcher.FetchAll(ctx, token, ids, onProgress)
	if err != nil {
		return nil, err
	}

	records := s.extractRecords(messages)
	periods := aggregateFn(records)

	if !s.isCurrentGeneration(key, generation) {
		s.log.Debug().Str("key", key).Msg("Discarding stale fetch result")
		return periods, nil
	}

	if err := s.cache.Set(key, periods, ttl); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache periods")
	}

	s.log.Info().
		Str("key", key).
		Int("messages", len(messages)).
		Int("transfers", len(records)).
		Msg("Computed period aggregates")

	return periods, nil
}

func (s *Service) extractRecords(messages []*gmail.Message) []aggregate.Record {
	records := make([]aggregate.Record, 0, len(messages))
	for _, msg := range messages {
		if msg.Date.IsZero() {
			s.log.Debug().Str("message_id", msg.ID).Msg("Skipping message without a parseable date")
			continue
		}
		transfer, ok := extract.Parse(msg.Body)
		if !ok {
			continue
		}
		records = append(records, aggregate.Record{
			Amount:    transfer.Amount,
			Timestamp: msg.Date,
		})
	}
	return records
}

func (s *Service) buildQuery(from, to time.Time) string {
	return fmt.Sprintf("from:%s after:%s before:%s",
		s.cfg.ProviderSender,
		from.Format("2006/01/02"),
		to.Format("2006/01/02"))
}

// nextGeneration bumps and returns the fetch generation for a signature.
// A later call for the same signature supersedes earlier in-flight fetches.
func (s *Service) nextGeneration(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[key]++
	return s.generations[key]
}

func (s *Service) isCurrentGeneration(key string, generation uint64) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[key] == generation
}
