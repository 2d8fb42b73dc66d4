package session

import (
	"sync"
	"time"
)

// Watchdog schedules a delayed expiry action per user and guarantees at most
// one pending timer per user: storing a new timer always cancels the previous
// one, and a superseded timer that already started firing is discarded before
// it can invoke the expiry callback.
type Watchdog struct {
	mu       sync.Mutex
	timeout  time.Duration
	timers   map[string]*time.Timer
	onExpire func(userID string)
}

// NewWatchdog creates a watchdog firing onExpire after timeout of silence.
// onExpire runs on the timer goroutine, detached from any request.
func NewWatchdog(timeout time.Duration, onExpire func(userID string)) *Watchdog {
	return &Watchdog{
		timeout:  timeout,
		timers:   make(map[string]*time.Timer),
		onExpire: onExpire,
	}
}

// Reset cancels any pending timer for userID and schedules a new one.
func (w *Watchdog) Reset(userID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[userID]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		// A Stop or Reset that raced with this firing wins: only the timer
		// still registered for the user is allowed to expire.
		if w.timers[userID] != timer {
			w.mu.Unlock()
			return
		}
		delete(w.timers, userID)
		w.mu.Unlock()

		w.onExpire(userID)
	})
	w.timers[userID] = timer
}

// Stop cancels any pending timer for userID without firing it.
// Safe to call when no timer is running.
func (w *Watchdog) Stop(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.timers[userID]
	if !ok {
		return false
	}
	t.Stop()
	delete(w.timers, userID)
	return true
}

// IsRunning reports whether a timer is currently pending for userID.
func (w *Watchdog) IsRunning(userID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[userID]
	return ok
}

// StopAll cancels every pending timer. Used on shutdown and close-all.
func (w *Watchdog) StopAll() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for userID, t := range w.timers {
		t.Stop()
		delete(w.timers, userID)
	}
}
