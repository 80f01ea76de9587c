package autofill

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// MutationDebounce is how long the page must stay quiet after a DOM
// mutation before a re-detection pass runs. Re-detection replaces the
// session snapshot and invalidates all outstanding opids, so firing on
// every mutation would constantly pull the rug out from under a fill
// in progress.
const MutationDebounce = 500 * time.Millisecond

// Watcher coalesces bursts of DOM mutation notifications into a single
// re-detection callback once the page settles.
type Watcher struct {
	mu      sync.Mutex
	window  time.Duration
	timer   *time.Timer
	pending int
	stopped bool
	onQuiet func(pending int)
	logger  *zap.Logger
}

// NewWatcher creates a watcher firing onQuiet after window of silence.
// A zero window uses MutationDebounce.
func NewWatcher(window time.Duration, onQuiet func(pending int), logger *zap.Logger) *Watcher {
	if window <= 0 {
		window = MutationDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		window:  window,
		onQuiet: onQuiet,
		logger:  logger,
	}
}

// Notify records one mutation and restarts the quiet timer.
func (w *Watcher) Notify() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.pending++
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.window, w.fire)
}

// Flush fires the callback immediately if mutations are pending.
func (w *Watcher) Flush() {
	w.fire()
}

// Stop cancels any pending callback. Notifications after Stop are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = 0
}

func (w *Watcher) fire() {
	w.mu.Lock()
	if w.stopped || w.pending == 0 {
		w.mu.Unlock()
		return
	}
	pending := w.pending
	w.pending = 0
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	// Release the lock before the callback so re-detection can call
	// Notify without deadlocking.
	w.mu.Unlock()

	w.logger.Debug("mutation window settled", zap.Int("mutations", pending))
	w.onQuiet(pending)
}
