// Package resilience shields the autofill pipeline from an unhealthy
// model backend. A tripped breaker fails match requests fast so the
// heuristic matcher can take over instead of every form stalling on
// provider timeouts.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitBreakerState is the breaker's admission mode.
type CircuitBreakerState int32

const (
	// StateClosed admits all requests.
	StateClosed CircuitBreakerState = iota
	// StateOpen rejects all requests until the cool-down elapses.
	StateOpen
	// StateHalfOpen admits a limited number of probe requests.
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned while the breaker is rejecting requests.
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when the half-open probe quota is spent.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// CircuitBreakerConfig tunes one breaker instance.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs; typically the model name.
	Name string

	// MaxRequests caps concurrent probes while half-open.
	MaxRequests uint32

	// Interval resets closed-state counts periodically so one bad
	// minute an hour ago cannot trip a healthy breaker. Zero keeps
	// counts forever.
	Interval time.Duration

	// Timeout is the open-state cool-down before probing resumes.
	Timeout time.Duration

	// ReadyToTrip inspects the counts after each failure and decides
	// whether to open the circuit.
	ReadyToTrip func(counts Counts) bool

	// OnStateChange observes transitions.
	OnStateChange func(name string, from, to CircuitBreakerState)

	// IsSuccessful classifies a request outcome. Defaults to err == nil,
	// which means context cancellations count against the provider; the
	// pipeline's own timeouts are short enough that this is the signal
	// we want.
	IsSuccessful func(err error) bool
}

// DefaultCircuitBreakerConfig suits a rate-limited LLM API: tolerate
// sporadic errors, open once the majority of a window fails.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	}
}

// Counts is the request tally for the current window.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) request() {
	c.Requests++
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker gates calls to one upstream. All accounting is tied to
// a window number so a late-settling request from before a state change
// cannot corrupt the fresh window's counts.
type CircuitBreaker struct {
	name          string
	maxRequests   uint32
	interval      time.Duration
	timeout       time.Duration
	readyToTrip   func(counts Counts) bool
	onStateChange func(name string, from, to CircuitBreakerState)
	isSuccessful  func(err error) bool

	mu     sync.Mutex
	state  CircuitBreakerState
	window uint64
	counts Counts
	expiry time.Time
	probes uint32
}

// NewCircuitBreaker builds a breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          config.Name,
		maxRequests:   config.MaxRequests,
		interval:      config.Interval,
		timeout:       config.Timeout,
		readyToTrip:   config.ReadyToTrip,
		onStateChange: config.OnStateChange,
		isSuccessful:  config.IsSuccessful,
	}

	if cb.maxRequests == 0 {
		cb.maxRequests = 1
	}
	if cb.timeout == 0 {
		cb.timeout = 30 * time.Second
	}
	if cb.readyToTrip == nil {
		cb.readyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures > 5
		}
	}
	if cb.isSuccessful == nil {
		cb.isSuccessful = func(err error) bool {
			return err == nil
		}
	}

	cb.nextWindow(time.Now())

	return cb
}

// State reports the current admission mode, applying any due
// open-to-half-open transition first.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, _ := cb.stateAt(time.Now())
	return state
}

// Counts returns the tally for the current window.
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Execute runs req if the breaker admits it.
func (cb *CircuitBreaker) Execute(req func() (interface{}, error)) (interface{}, error) {
	return cb.ExecuteWithContext(context.Background(), func(ctx context.Context) (interface{}, error) {
		return req()
	})
}

// ExecuteWithContext runs req if the breaker admits it. A context
// already cancelled before the call never reaches the upstream and is
// not counted.
func (cb *CircuitBreaker) ExecuteWithContext(ctx context.Context, req func(context.Context) (interface{}, error)) (interface{}, error) {
	window, err := cb.admit()
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result, err := req(ctx)

	cb.settle(window, cb.isSuccessful(err))

	return result, err
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state, window := cb.stateAt(time.Now())

	switch state {
	case StateOpen:
		return window, ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.maxRequests {
			return window, ErrTooManyRequests
		}
		cb.probes++
	}

	cb.counts.request()
	return window, nil
}

func (cb *CircuitBreaker) settle(admitted uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := time.Now()
	state, window := cb.stateAt(now)

	// The window rolled while the request was in flight; its counts
	// are gone and the outcome no longer means anything.
	if window != admitted {
		return
	}

	if success {
		cb.recordSuccess(state, now)
	} else {
		cb.recordFailure(state, now)
	}
}

func (cb *CircuitBreaker) recordSuccess(state CircuitBreakerState, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.success()
	case StateHalfOpen:
		cb.counts.success()
		if cb.counts.ConsecutiveSuccesses >= cb.maxRequests {
			cb.transition(StateClosed, now)
		}
	}
}

func (cb *CircuitBreaker) recordFailure(state CircuitBreakerState, now time.Time) {
	switch state {
	case StateClosed:
		cb.counts.failure()
		if cb.readyToTrip(cb.counts) {
			cb.transition(StateOpen, now)
		}
	case StateHalfOpen:
		// One failed probe is enough evidence the upstream is still down.
		cb.transition(StateOpen, now)
	}
}

// stateAt resolves the effective state at now, rolling expired windows.
// Caller must hold mu.
func (cb *CircuitBreaker) stateAt(now time.Time) (CircuitBreakerState, uint64) {
	switch cb.state {
	case StateClosed:
		if !cb.expiry.IsZero() && cb.expiry.Before(now) {
			cb.nextWindow(now)
		}
	case StateOpen:
		if cb.expiry.Before(now) {
			cb.transition(StateHalfOpen, now)
		}
	}
	return cb.state, cb.window
}

func (cb *CircuitBreaker) transition(state CircuitBreakerState, now time.Time) {
	if cb.state == state {
		return
	}

	prev := cb.state
	cb.state = state

	cb.nextWindow(now)

	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, prev, state)
	}
}

func (cb *CircuitBreaker) nextWindow(now time.Time) {
	cb.window++
	cb.counts = Counts{}
	cb.probes = 0

	switch cb.state {
	case StateClosed:
		if cb.interval > 0 {
			cb.expiry = now.Add(cb.interval)
		} else {
			cb.expiry = time.Time{}
		}
	case StateOpen:
		cb.expiry = now.Add(cb.timeout)
	case StateHalfOpen:
		cb.expiry = time.Time{}
	}
}
