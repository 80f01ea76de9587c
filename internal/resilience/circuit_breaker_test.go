package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream down")

func failingCall() (interface{}, error) { return nil, errUpstream }

// tripAtTwo opens the breaker on the second consecutive failure, with a
// short cool-down so half-open behavior is testable.
func tripAtTwo() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        "test",
		MaxRequests: 1,
		Timeout:     50 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 2
		},
	}
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_TripsToOpen(t *testing.T) {
	cb := NewCircuitBreaker(tripAtTwo())

	cb.Execute(failingCall)
	cb.Execute(failingCall)

	if cb.State() != StateOpen {
		t.Errorf("state after repeated failures = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_RejectsWhileOpen(t *testing.T) {
	cb := NewCircuitBreaker(tripAtTwo())
	cb.Execute(failingCall)
	cb.Execute(failingCall)

	called := false
	_, err := cb.Execute(func() (interface{}, error) {
		called = true
		return "ok", nil
	})

	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("request must not reach the upstream while open")
	}
}

func TestCircuitBreaker_HalfOpensAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker(tripAtTwo())
	cb.Execute(failingCall)
	cb.Execute(failingCall)

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	time.Sleep(60 * time.Millisecond)

	if cb.State() != StateHalfOpen {
		t.Errorf("state after cool-down = %v, want half-open", cb.State())
	}
}

func TestCircuitBreaker_ClosesOnSuccessfulProbe(t *testing.T) {
	cb := NewCircuitBreaker(tripAtTwo())
	cb.Execute(failingCall)
	cb.Execute(failingCall)
	time.Sleep(60 * time.Millisecond)

	result, err := cb.Execute(func() (interface{}, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %v", result)
	}
	if cb.State() != StateClosed {
		t.Errorf("state after successful probe = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_ReopensOnFailedProbe(t *testing.T) {
	cb := NewCircuitBreaker(tripAtTwo())
	cb.Execute(failingCall)
	cb.Execute(failingCall)
	time.Sleep(60 * time.Millisecond)

	cb.Execute(failingCall)

	if cb.State() != StateOpen {
		t.Errorf("state after failed probe = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_ProbeQuota(t *testing.T) {
	cfg := tripAtTwo()
	cb := NewCircuitBreaker(cfg)
	cb.Execute(failingCall)
	cb.Execute(failingCall)
	time.Sleep(60 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go cb.Execute(func() (interface{}, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	// Quota of 1 is consumed by the in-flight probe.
	_, err := cb.Execute(func() (interface{}, error) { return nil, nil })
	if !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("err = %v, want ErrTooManyRequests", err)
	}
	close(release)
}

func TestCircuitBreaker_ContextCancelledBeforeCall(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := cb.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		called = true
		return nil, nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("cancelled request must not run")
	}
}

func TestCircuitBreaker_ConcurrentSuccesses(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cb.Execute(func() (interface{}, error) { return nil, nil }); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if cb.State() != StateClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
	if got := cb.Counts().TotalSuccesses; got != 20 {
		t.Errorf("TotalSuccesses = %d, want 20", got)
	}
}

func TestCircuitBreaker_Counts(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig("test"))

	for i := 0; i < 3; i++ {
		cb.Execute(func() (interface{}, error) { return nil, nil })
	}
	cb.Execute(failingCall)

	counts := cb.Counts()
	if counts.Requests != 4 {
		t.Errorf("Requests = %d, want 4", counts.Requests)
	}
	if counts.TotalSuccesses != 3 {
		t.Errorf("TotalSuccesses = %d, want 3", counts.TotalSuccesses)
	}
	if counts.TotalFailures != 1 {
		t.Errorf("TotalFailures = %d, want 1", counts.TotalFailures)
	}
	if counts.ConsecutiveSuccesses != 0 {
		t.Errorf("ConsecutiveSuccesses = %d, want 0 after a failure", counts.ConsecutiveSuccesses)
	}
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	cfg := tripAtTwo()
	cfg.OnStateChange = func(name string, from, to CircuitBreakerState) {
		mu.Lock()
		transitions = append(transitions, from.String()+"->"+to.String())
		mu.Unlock()
	}
	cb := NewCircuitBreaker(cfg)

	cb.Execute(failingCall)
	cb.Execute(failingCall)
	time.Sleep(60 * time.Millisecond)
	cb.State()
	cb.Execute(func() (interface{}, error) { return nil, nil })

	mu.Lock()
	defer mu.Unlock()
	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition[%d] = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCircuitBreakerState_String(t *testing.T) {
	tests := []struct {
		state CircuitBreakerState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitBreakerState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
