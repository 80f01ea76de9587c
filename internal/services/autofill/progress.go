package autofill

import (
	"fmt"
	"sync"
)

// Stage is one step of the autofill progress state machine.
type Stage string

const (
	StageDetecting      Stage = "detecting"
	StageAnalyzing      Stage = "analyzing"
	StageMatching       Stage = "matching"
	StageShowingPreview Stage = "showing-preview"
	StageCompleted      Stage = "completed"
	StageFailed         Stage = "failed"
)

// stageOrder defines the forward sequence. Failed is reachable from any
// non-terminal stage and is not part of the order.
var stageOrder = map[Stage]int{
	StageDetecting:      0,
	StageAnalyzing:      1,
	StageMatching:       2,
	StageShowingPreview: 3,
	StageCompleted:      4,
}

// Event is one progress notification delivered to subscribers.
type Event struct {
	Stage Stage  `json:"stage"`
	Error string `json:"error,omitempty"`
}

// Tracker broadcasts autofill progress to the UI layer. Stage ordering
// is monotonic forward; only failure may interrupt the sequence.
type Tracker struct {
	mu      sync.Mutex
	current Stage
	started bool
	subs    []chan Event
}

// NewTracker creates a tracker with no stage entered yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Subscribe returns a channel receiving every subsequent event. The
// channel is buffered for the full stage sequence so a slow consumer
// cannot stall the pipeline.
func (t *Tracker) Subscribe() <-chan Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Event, len(stageOrder)+1)
	t.subs = append(t.subs, ch)
	return ch
}

// Advance moves to the given stage. Backward moves and moves out of a
// terminal stage are rejected.
func (t *Tracker) Advance(stage Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	order, ok := stageOrder[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}
	if t.terminal() {
		return fmt.Errorf("cannot advance out of terminal stage %q", t.current)
	}
	if t.started && order <= stageOrder[t.current] {
		return fmt.Errorf("cannot move backward from %q to %q", t.current, stage)
	}

	t.current = stage
	t.started = true
	t.broadcast(Event{Stage: stage})
	return nil
}

// Fail moves to the failed terminal stage with a human-readable message.
// Valid from any non-terminal stage.
func (t *Tracker) Fail(message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.terminal() {
		return fmt.Errorf("cannot fail out of terminal stage %q", t.current)
	}
	t.current = StageFailed
	t.started = true
	t.broadcast(Event{Stage: StageFailed, Error: message})
	return nil
}

// Current returns the current stage, empty before the first Advance.
func (t *Tracker) Current() Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Close ends the event stream for all subscribers. Safe to call more
// than once; events after Close are dropped.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Tracker) terminal() bool {
	return t.current == StageCompleted || t.current == StageFailed
}

func (t *Tracker) broadcast(ev Event) {
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
