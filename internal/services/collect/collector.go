package collect

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/observability"
)

// Collector runs the fan-out/fan-in detection gather over a broker and
// merges whatever arrived. A partial gather is a success; only a fully
// silent page is an error.
type Collector struct {
	broker  *Broker
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewCollector creates a collector. A zero timeout uses CollectTimeout.
func NewCollector(broker *Broker, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Collector {
	if timeout <= 0 {
		timeout = CollectTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{broker: broker, timeout: timeout, metrics: metrics, logger: logger}
}

// CollectForms gathers detection results from every attached frame and
// merges them into one page-level result.
func (c *Collector) CollectForms(ctx context.Context) (domain.DetectResult, error) {
	start := time.Now()
	results := c.broker.Collect(ctx, c.timeout)
	if c.metrics != nil {
		c.metrics.ObserveFrameGather(time.Since(start), len(results))
	}

	if len(results) == 0 {
		c.logger.Warn("no frames responded to detection request",
			zap.Int("frames", c.broker.FrameCount()))
		return domain.DetectResult{Error: "no frames responded"},
			domain.ErrDetectionFailed("no frames responded within the collection window", nil)
	}

	merged := Merge(results)
	c.logger.Info("frame gather complete",
		zap.Int("frames_responded", len(results)),
		zap.Int("frames_attached", c.broker.FrameCount()),
		zap.Int("forms", len(merged.Forms)),
		zap.Int("fields", merged.TotalFields),
	)
	return merged, nil
}
