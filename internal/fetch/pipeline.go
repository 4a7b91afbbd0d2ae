// Package fetch drives batched, parallel message retrieval with retry.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/tipfolio/internal/clients/gmail"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 500 * time.Millisecond
	defaultRetryBase  = time.Second
	maxRetries        = 3
)

// MessageGetter fetches a single decoded message.
type MessageGetter interface {
	GetMessage(ctx context.Context, token, id string) (*gmail.Message, error)
}

// ProgressFunc is called after each batch with the number of ids processed so
// far and the total.
type ProgressFunc func(current, total int)

// Pipeline fetches message ids in fixed-size batches. Fetches within a batch
// run concurrently and settle independently; batches are separated by a fixed
// delay to smooth request rate.
type Pipeline struct {
	getter     MessageGetter
	log        zerolog.Logger
	batchSize  int
	batchDelay time.Duration
	retryBase  time.Duration // unit for the 2^n backoff, shortened in tests
}

// New creates a pipeline with production batch size and delays.
func New(getter MessageGetter, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		getter:     getter,
		log:        log.With().Str("component", "fetch-pipeline").Logger(),
		batchSize:  defaultBatchSize,
		batchDelay: defaultBatchDelay,
		retryBase:  defaultRetryBase,
	}
}

// FetchAll retrieves all ids. Output order is unspecified; callers sort.
//
// A message that stays rate-limited after exhausting its retry budget, or an
// authentication failure, aborts the remaining batches and surfaces the
// sentinel error. Any other per-message failure is logged and that message is
// skipped without aborting its batch.
func (p *Pipeline) FetchAll(ctx context.Context, token string, ids []string, onProgress ProgressFunc) ([]*gmail.Message, error) {
	total := len(ids)
	messages := make([]*gmail.Message, 0, total)

	for start := 0; start < total; start += p.batchSize {
		end := start + p.batchSize
		if end > total {
			end = total
		}
		batch := ids[start:end]

		results := make([]*gmail.Message, len(batch))
		batchErrs := make([]error, len(batch))

		var wg sync.WaitGroup
		for i, id := range batch {
			wg.Add(1)
			go func(i int, id string) {
				defer wg.Done()
				msg, err := p.fetchWithRetry(ctx, token, id)
				results[i], batchErrs[i] = msg, err
			}(i, id)
		}
		wg.Wait()

		for i, err := range batchErrs {
			switch {
			case err == nil:
				messages = append(messages, results[i])
			case errors.Is(err, gmail.ErrRateLimited), errors.Is(err, gmail.ErrAuthExpired):
				// Escalate: abort remaining batches
				return nil, err
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				return nil, err
			default:
				p.log.Warn().Err(err).Str("message_id", batch[i]).Msg("Skipping message after fetch failure")
			}
		}

		if onProgress != nil {
			onProgress(end, total)
		}

		// Pause between batches (not after the last one)
		if end < total {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.batchDelay):
			}
		}
	}

	return messages, nil
}

// fetchWithRetry fetches one message, retrying rate-limit failures with
// exponential backoff (2^attempt units, up to maxRetries attempts).
func (p *Pipeline) fetchWithRetry(ctx context.Context, token, id string) (*gmail.Message, error) {
	for attempt := 0; ; attempt++ {
		msg, err := p.getter.GetMessage(ctx, token, id)
		if err == nil {
			return msg, nil
		}
		if !errors.Is(err, gmail.ErrRateLimited) {
			return nil, err
		}
		if attempt >= maxRetries {
			return nil, fmt.Errorf("message %s still rate-limited after %d retries: %w", id, maxRetries, gmail.ErrRateLimited)
		}

		wait := p.retryBase << attempt
		p.log.Debug().
			Str("message_id", id).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Rate limited, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}
