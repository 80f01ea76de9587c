package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/memfill/memfill/internal/resilience"
)

type flakyProvider struct {
	err   error
	calls int
}

func (p *flakyProvider) Complete(ctx context.Context, system, user string) (string, *Usage, error) {
	p.calls++
	if p.err != nil {
		return "", nil, p.err
	}
	return `{"ok": true}`, &Usage{InputTokens: 1, OutputTokens: 1}, nil
}

func (p *flakyProvider) CompleteJSON(ctx context.Context, system, user string, result interface{}) (*Usage, error) {
	return completeJSONWithRetry(ctx, p.Complete, system, user, result)
}

func (p *flakyProvider) Model() string { return "flaky-test-model" }

func TestBreakerProvider_PassesThrough(t *testing.T) {
	inner := &flakyProvider{}
	bp := NewBreakerProvider(inner, nil)

	text, usage, err := bp.Complete(context.Background(), "sys", "user")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != `{"ok": true}` {
		t.Errorf("text = %q", text)
	}
	if usage == nil || usage.InputTokens != 1 {
		t.Errorf("usage = %+v", usage)
	}
	if bp.State() != resilience.StateClosed {
		t.Errorf("state = %v, want closed", bp.State())
	}
}

func TestBreakerProvider_TripsAfterRepeatedFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("upstream down")}
	bp := NewBreakerProvider(inner, nil)

	// Default config trips at 60% failure rate after 5 requests.
	for i := 0; i < 6; i++ {
		bp.Complete(context.Background(), "sys", "user")
	}

	if bp.State() != resilience.StateOpen {
		t.Fatalf("state = %v, want open", bp.State())
	}

	callsBefore := inner.calls
	_, _, err := bp.Complete(context.Background(), "sys", "user")
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("error = %v, want ErrCircuitOpen", err)
	}
	if inner.calls != callsBefore {
		t.Error("open breaker must not reach the provider")
	}
}

func TestBreakerProvider_Model(t *testing.T) {
	bp := NewBreakerProvider(&flakyProvider{}, nil)
	if bp.Model() != "flaky-test-model" {
		t.Errorf("Model() = %q", bp.Model())
	}
}
