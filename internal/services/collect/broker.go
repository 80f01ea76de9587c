package collect

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
)

// CollectTimeout bounds one multi-frame gather. A frame that has not
// responded by then simply contributes nothing.
const CollectTimeout = 2 * time.Second

// Request is a broadcast detection request. Frames correlate their
// response to it solely through ID; nothing about the requesting
// operation leaks into the request.
type Request struct {
	ID string
}

// Response carries one frame's detection result back to the gather that
// asked for it.
type Response struct {
	RequestID string
	Result    domain.DetectResult
}

// DetectFunc runs one frame's local detection pass.
type DetectFunc func(ctx context.Context) domain.DetectResult

// Broker fans a detection request out to every attached frame and
// gathers the responses. Responses are correlated by request ID only,
// never by frame identity, so concurrent gathers (multiple tabs, or an
// overlapping re-detection) cannot cross-contaminate.
type Broker struct {
	mu        sync.Mutex
	frames    []chan Request
	listeners map[string]chan Response
	logger    *zap.Logger
}

// NewBroker creates a broker with no frames attached.
func NewBroker(logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		listeners: make(map[string]chan Response),
		logger:    logger,
	}
}

// Attach registers a frame and starts its request loop. The loop runs
// detect for every request it receives and publishes the result. It
// exits when ctx is cancelled.
func (b *Broker) Attach(ctx context.Context, detect DetectFunc) {
	reqs := make(chan Request, 4)

	b.mu.Lock()
	b.frames = append(b.frames, reqs)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-reqs:
				b.publish(Response{RequestID: req.ID, Result: detect(ctx)})
			}
		}
	}()
}

// FrameCount returns the number of attached frames.
func (b *Broker) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// publish routes a response to the gather waiting on its request ID.
// Responses arriving after the gather resolved are dropped.
func (b *Broker) publish(resp Response) {
	b.mu.Lock()
	ch := b.listeners[resp.RequestID]
	b.mu.Unlock()

	if ch == nil {
		b.logger.Debug("dropping late frame response",
			zap.String("request_id", resp.RequestID))
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

// Collect broadcasts one detection request and gathers responses until
// every frame answered or the timeout elapsed. Best-effort: the timeout
// is not an error, and the gather resolves exactly once, removing its
// listener on both paths.
func (b *Broker) Collect(ctx context.Context, timeout time.Duration) []domain.DetectResult {
	requestID := uuid.New().String()

	// The listener must exist before any frame can see the request, or a
	// fast frame could respond into the void.
	b.mu.Lock()
	expected := len(b.frames)
	responses := make(chan Response, expected)
	b.listeners[requestID] = responses
	for _, frame := range b.frames {
		select {
		case frame <- Request{ID: requestID}:
		default:
			// A frame with a saturated queue is treated as unresponsive.
			expected--
		}
	}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.listeners, requestID)
		b.mu.Unlock()
	}()

	if expected == 0 {
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var results []domain.DetectResult
	for len(results) < expected {
		select {
		case resp := <-responses:
			results = append(results, resp.Result)
		case <-timer.C:
			b.logger.Debug("frame gather timed out",
				zap.String("request_id", requestID),
				zap.Int("expected", expected),
				zap.Int("received", len(results)))
			return results
		case <-ctx.Done():
			return results
		}
	}
	return results
}
