// Package mirror stores the full tip collection inside a single Gmail draft,
// identified by a fixed sentinel subject. Abstractly this is a single-record
// external key-value store keyed by a sentinel label; the find/load/save
// contract stays stable even if the backing store changes.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/modules/tips"
)

// SentinelSubject marks the one draft acting as the remote tip store.
// Correctness depends on this subject staying unique in the mailbox.
const SentinelSubject = "tipfolio-sync-data-v1"

// DraftAPI is the slice of the Gmail client the mirror needs.
type DraftAPI interface {
	ListDrafts(ctx context.Context, token, query string) ([]gmail.DraftRef, error)
	GetDraft(ctx context.Context, token, id string) (*gmail.Message, error)
	CreateDraft(ctx context.Context, token string, raw []byte) (*gmail.DraftRef, error)
	UpdateDraft(ctx context.Context, token, id string, raw []byte) (*gmail.DraftRef, error)
}

// Store is the draft-backed implementation of the remote tip mirror.
type Store struct {
	api DraftAPI
	log zerolog.Logger
}

// NewStore creates a new draft-backed mirror store.
func NewStore(api DraftAPI, log zerolog.Logger) *Store {
	return &Store{
		api: api,
		log: log.With().Str("component", "tip-mirror").Logger(),
	}
}

// envelope is the serialized form embedded in the draft body.
type envelope struct {
	Tips []tips.Tip `json:"tips"`
}

// Find looks up the one draft carrying the sentinel subject.
// Returns nil when no such draft exists.
func (s *Store) Find(ctx context.Context, token string) (*gmail.DraftRef, error) {
	query := fmt.Sprintf("subject:%q", SentinelSubject)
	refs, err := s.api.ListDrafts(ctx, token, query)
	if err != nil {
		return nil, fmt.Errorf("failed to find mirror draft: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	if len(refs) > 1 {
		s.log.Warn().Int("count", len(refs)).Msg("Multiple mirror drafts found, using the first")
	}
	return &refs[0], nil
}

// Load fetches the tip collection from the mirror draft.
// Absence of the draft or an unparseable body yields an empty collection,
// never an error; transport and authentication failures are surfaced.
func (s *Store) Load(ctx context.Context, token string) ([]tips.Tip, error) {
	ref, err := s.Find(ctx, token)
	if err != nil {
		return nil, err
	}
	if ref == nil {
		return []tips.Tip{}, nil
	}

	msg, err := s.api.GetDraft(ctx, token, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mirror draft: %w", err)
	}

	parsed, ok := extractEnvelope(msg.Body)
	if !ok {
		s.log.Warn().Str("draft_id", ref.ID).Msg("Mirror draft body not parseable, treating as empty")
		return []tips.Tip{}, nil
	}

	return parsed.Tips, nil
}

// Save serializes the full tip collection into the mirror draft, creating it
// only when absent - never a second draft with the sentinel subject.
func (s *Store) Save(ctx context.Context, token string, collection []tips.Tip) error {
	raw, err := buildRawMessage(collection)
	if err != nil {
		return err
	}

	ref, err := s.Find(ctx, token)
	if err != nil {
		return err
	}

	if ref == nil {
		if _, err := s.api.CreateDraft(ctx, token, raw); err != nil {
			return fmt.Errorf("failed to create mirror draft: %w", err)
		}
		s.log.Info().Int("tips", len(collection)).Msg("Created mirror draft")
		return nil
	}

	if _, err := s.api.UpdateDraft(ctx, token, ref.ID, raw); err != nil {
		return fmt.Errorf("failed to update mirror draft: %w", err)
	}
	s.log.Debug().Str("draft_id", ref.ID).Int("tips", len(collection)).Msg("Updated mirror draft")
	return nil
}

// extractEnvelope finds the JSON-looking substring - the span from the first
// '{' to the last '}' - and parses it, shrugging off any surrounding MIME
// boilerplate.
func extractEnvelope(body string) (envelope, bool) {
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal([]byte(body[start:end+1]), &env); err != nil {
		return envelope{}, false
	}
	return env, true
}

// buildRawMessage assembles the minimal plaintext RFC 2822 message holding
// the pretty-printed tip collection.
func buildRawMessage(collection []tips.Tip) ([]byte, error) {
	payload, err := json.MarshalIndent(envelope{Tips: collection}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tips: %w", err)
	}

	var b strings.Builder
	b.WriteString("Subject: " + SentinelSubject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString("Tipfolio sync data. Do not edit or delete this draft.\r\n\r\n")
	b.Write(payload)
	b.WriteString("\r\n")

	return []byte(b.String()), nil
}
