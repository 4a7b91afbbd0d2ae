// Package session tracks API activity and signals idle expiry.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Watchdog fires a callback once after a period without activity.
// Touch restarts the countdown; after expiry the next Touch arms a
// fresh session.
type Watchdog struct {
	timeout  time.Duration
	onExpire func()
	log      zerolog.Logger

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewWatchdog creates a watchdog. The countdown starts on the first Touch.
func NewWatchdog(timeout time.Duration, onExpire func(), log zerolog.Logger) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		onExpire: onExpire,
		log:      log.With().Str("component", "session-watchdog").Logger(),
	}
}

// Touch records activity, resetting the idle countdown.
func (w *Watchdog) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.timeout, w.expire)
}

func (w *Watchdog) expire() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.timer = nil
	w.mu.Unlock()

	w.log.Info().Dur("timeout", w.timeout).Msg("Session idle, expiring")
	if w.onExpire != nil {
		w.onExpire()
	}
}

// Stop cancels any pending expiry. The watchdog cannot be reused.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
