package session

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiresAfterIdleTimeout(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())
	defer w.Stop()

	w.Touch()

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load(), "expiry should fire once per idle period")
}

func TestTouchResetsCountdown(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(50*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())
	defer w.Stop()

	w.Touch()
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		w.Touch()
	}
	assert.Equal(t, int32(0), fired.Load(), "activity should keep the session alive")

	require.Eventually(t, func() bool {
		return fired.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestTouchAfterExpiryArmsNewSession(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())
	defer w.Stop()

	w.Touch()
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	w.Touch()
	require.Eventually(t, func() bool { return fired.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestStopCancelsPendingExpiry(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(20*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())

	w.Touch()
	w.Stop()

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTouchAfterStopIsNoOp(t *testing.T) {
	var fired atomic.Int32
	w := NewWatchdog(10*time.Millisecond, func() { fired.Add(1) }, zerolog.Nop())

	w.Stop()
	w.Touch()

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}
