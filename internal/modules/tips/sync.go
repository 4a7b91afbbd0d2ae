package tips

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// MirrorStore is the remote copy of the tip collection.
// Implemented by the draft-backed mirror; the contract stays stable even if
// the backing store changes.
type MirrorStore interface {
	Load(ctx context.Context, token string) ([]Tip, error)
	Save(ctx context.Context, token string, tips []Tip) error
}

// Coordinator reconciles the local tip store with the remote mirror.
// A single-flight guard makes a concurrent second sync a no-op: not queued,
// not retried.
type Coordinator struct {
	repo    *Repository
	mirror  MirrorStore
	log     zerolog.Logger
	running atomic.Bool
}

// NewCoordinator creates a new sync coordinator.
func NewCoordinator(repo *Repository, mirror MirrorStore, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		repo:   repo,
		mirror: mirror,
		log:    log.With().Str("component", "tip-sync").Logger(),
	}
}

// Initialize pulls the remote tips, merges them with the local store
// (remote wins on identifier collision) and persists every merged record
// marked synced. Called once when a session starts.
func (c *Coordinator) Initialize(ctx context.Context, token string) error {
	remote, err := c.mirror.Load(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to load remote tips: %w", err)
	}

	local, err := c.repo.ListAll()
	if err != nil {
		return fmt.Errorf("failed to load local tips: %w", err)
	}

	merged := Merge(local, remote)
	for i := range merged {
		merged[i].Synced = true
		if err := c.repo.Upsert(merged[i]); err != nil {
			return fmt.Errorf("failed to persist merged tip: %w", err)
		}
	}

	c.log.Info().
		Int("local", len(local)).
		Int("remote", len(remote)).
		Int("merged", len(merged)).
		Msg("Tip stores reconciled")

	return nil
}

// Sync pushes the full local tip set to the mirror and marks previously
// unsynced records synced. Returns immediately when a sync is already
// running. The guard is released even on failure; the failure is re-raised
// to the caller.
func (c *Coordinator) Sync(ctx context.Context, token string) error {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Debug().Msg("Sync already in progress, skipping")
		return nil
	}
	defer c.running.Store(false)

	local, err := c.repo.ListAll()
	if err != nil {
		return fmt.Errorf("failed to read local tips: %w", err)
	}

	unsynced, err := c.repo.ListUnsynced()
	if err != nil {
		return fmt.Errorf("failed to read unsynced tips: %w", err)
	}

	// The mirror always reflects the full current local set: push = overwrite.
	if err := c.mirror.Save(ctx, token, local); err != nil {
		return fmt.Errorf("failed to push tips to mirror: %w", err)
	}

	ids := make([]string, 0, len(unsynced))
	for _, t := range unsynced {
		ids = append(ids, t.ID)
	}
	if err := c.repo.MarkSynced(ids); err != nil {
		return fmt.Errorf("failed to mark tips synced: %w", err)
	}

	c.log.Debug().Int("pushed", len(local)).Int("newly_synced", len(ids)).Msg("Tips pushed to mirror")
	return nil
}

// SyncAsync fires Sync on a goroutine without blocking the caller.
// Failures are logged, never surfaced to the mutation path that triggered
// the push.
func (c *Coordinator) SyncAsync(token string) {
	go func() {
		if err := c.Sync(context.Background(), token); err != nil {
			c.log.Warn().Err(err).Msg("Background tip sync failed")
		}
	}()
}
