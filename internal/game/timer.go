// internal/game/timer.go
package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerState is the lifecycle state of a RoundTimer.
type TimerState string

const (
	TimerIdle    TimerState = "idle"
	TimerRunning TimerState = "running"
	TimerPaused  TimerState = "paused"
	TimerExpired TimerState = "expired"
)

// tickInterval is how often a running timer counts down one second.
const tickInterval = time.Second

// RoundTimer counts a group's round down once per second.
//
// Every method must be called with the owning group's lock held. The tick
// goroutine takes that same lock for each tick and discards ticks from a
// source that has since been stopped, so at most one tick source is ever live
// per timer.
type RoundTimer struct {
	clock clockwork.Clock
	lock  sync.Locker

	// onTick and onExpire run with the lock held.
	onTick   func(remaining int)
	onExpire func()

	state     TimerState
	remaining int

	ticker clockwork.Ticker
	done   chan struct{}
	gen    uint64
}

// NewRoundTimer builds an idle timer guarded by lock.
func NewRoundTimer(clock clockwork.Clock, lock sync.Locker, onTick func(int), onExpire func()) *RoundTimer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RoundTimer{
		clock:    clock,
		lock:     lock,
		onTick:   onTick,
		onExpire: onExpire,
		state:    TimerIdle,
	}
}

// Start begins counting down. An idle or expired timer is seeded with seconds,
// a paused one resumes where it stopped. Any existing tick source is torn down
// before the new one is created.
func (t *RoundTimer) Start(seconds int) {
	if (t.state != TimerRunning && t.state != TimerPaused) || t.remaining <= 0 {
		t.remaining = seconds
	}
	if t.remaining <= 0 {
		return
	}
	t.stopSource()

	t.state = TimerRunning
	t.ticker = t.clock.NewTicker(tickInterval)
	t.done = make(chan struct{})
	go t.run(t.ticker, t.done, t.gen)
}

// Pause stops ticking and keeps the remaining time. No-op unless running.
func (t *RoundTimer) Pause() {
	if t.state != TimerRunning {
		return
	}
	t.stopSource()
	t.state = TimerPaused
}

// Reset stops ticking and rewinds to seconds.
func (t *RoundTimer) Reset(seconds int) {
	t.stopSource()
	t.remaining = seconds
	t.state = TimerIdle
}

// Stop tears down the tick source without touching state; used on shutdown.
func (t *RoundTimer) Stop() {
	t.stopSource()
}

// State returns the current lifecycle state.
func (t *RoundTimer) State() TimerState { return t.state }

// Remaining returns the seconds left on the clock.
func (t *RoundTimer) Remaining() int { return t.remaining }

func (t *RoundTimer) stopSource() {
	t.gen++
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}

func (t *RoundTimer) run(ticker clockwork.Ticker, done <-chan struct{}, gen uint64) {
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			t.lock.Lock()
			if t.gen != gen || t.state != TimerRunning {
				t.lock.Unlock()
				return
			}
			if t.remaining > 0 {
				t.remaining--
			}
			if t.onTick != nil {
				t.onTick(t.remaining)
			}
			expired := t.remaining == 0
			if expired {
				t.stopSource()
				t.state = TimerExpired
				if t.onExpire != nil {
					t.onExpire()
				}
			}
			t.lock.Unlock()
			if expired {
				return
			}
		}
	}
}
