package autofill

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/observability"
	"github.com/memfill/memfill/internal/services/detection"
)

// DefaultConfidenceThreshold is the user-facing auto-fill gate. It is
// deliberately higher than the matcher's own floor: a mapping can be a
// valid match worth showing in a preview yet still not confident enough
// to write into the page unprompted.
const DefaultConfidenceThreshold = 0.7

// Matcher produces field-to-memory mappings.
type Matcher interface {
	MatchFields(ctx context.Context, fields []domain.FieldSnapshot, memories []domain.MemoryEntry, site *domain.WebsiteContext) []domain.FieldMapping
}

// MemoryStore is the slice of the repository the pipeline needs.
type MemoryStore interface {
	List(ctx context.Context) ([]domain.MemoryEntry, error)
	RecordUsage(ctx context.Context, id uuid.UUID) error
}

// FormCollector gathers detection results across frames.
type FormCollector interface {
	CollectForms(ctx context.Context) (domain.DetectResult, error)
}

// Config holds the pipeline knobs a user can tune.
type Config struct {
	// ConfidenceThreshold gates AutoFill on each mapping. Zero means
	// DefaultConfidenceThreshold.
	ConfidenceThreshold float64
	// AutoApply fills auto-fill mappings without waiting for preview
	// confirmation.
	AutoApply bool
}

// RunResult is the outcome of one pipeline run.
type RunResult struct {
	Generation uint64                `json:"generation"`
	Detect     domain.DetectResult   `json:"detect"`
	Mappings   []domain.FieldMapping `json:"mappings"`
	Report     *domain.FillReport    `json:"report,omitempty"`
}

// Orchestrator runs the detect, match, fill pipeline for the main frame
// and reports progress through a Tracker.
type Orchestrator struct {
	collector FormCollector
	matcher   Matcher
	store     MemoryStore
	session   *detection.Session
	filler    *Filler
	cfg       Config
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewOrchestrator wires the pipeline. The session must be the same one
// the main frame's detector refreshes, so generations line up between
// collection and fill.
func NewOrchestrator(collector FormCollector, matcher Matcher, store MemoryStore, session *detection.Session, filler *Filler, cfg Config, metrics *observability.Metrics, logger *zap.Logger) *Orchestrator {
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		collector: collector,
		matcher:   matcher,
		store:     store,
		session:   session,
		filler:    filler,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes one full pass. The trigger names what started the run
// ("manual", "mutation", "navigation") and is recorded in metrics.
// A nil tracker gets a private one.
func (o *Orchestrator) Run(ctx context.Context, trigger string, tracker *Tracker) (*RunResult, error) {
	if tracker == nil {
		tracker = NewTracker()
	}

	_ = tracker.Advance(StageDetecting)
	detect, err := o.collector.CollectForms(ctx)
	if err != nil {
		_ = tracker.Fail(err.Error())
		o.recordPass(trigger, "failed", 0)
		return nil, err
	}

	result := &RunResult{
		Generation: o.session.Generation(),
		Detect:     detect,
	}

	_ = tracker.Advance(StageAnalyzing)
	fields := flattenFields(detect.Forms)
	if len(fields) == 0 {
		_ = tracker.Advance(StageCompleted)
		o.recordPass(trigger, "empty", 0)
		return result, nil
	}

	memories, err := o.store.List(ctx)
	if err != nil {
		_ = tracker.Fail(err.Error())
		o.recordPass(trigger, "failed", len(fields))
		return nil, domain.ErrMatchingFailed("loading memories", err)
	}

	_ = tracker.Advance(StageMatching)
	mappings := o.matcher.MatchFields(ctx, fields, memories, detect.WebsiteContext)
	for i := range mappings {
		m := &mappings[i]
		m.AutoFill = m.HasMatch() && m.Confidence >= o.cfg.ConfidenceThreshold
	}
	result.Mappings = mappings

	_ = tracker.Advance(StageShowingPreview)

	if o.cfg.AutoApply {
		plan := BuildPlan(result.Generation, mappings, true)
		report, err := o.filler.Fill(plan)
		if err != nil {
			_ = tracker.Fail(err.Error())
			o.recordPass(trigger, "failed", len(fields))
			return nil, err
		}
		result.Report = &report
		o.recordUsage(ctx, plan, mappings)
	}

	_ = tracker.Advance(StageCompleted)
	o.recordPass(trigger, "success", len(fields))
	o.logger.Info("autofill run complete",
		zap.String("trigger", trigger),
		zap.Int("fields", len(fields)),
		zap.Int("mappings", len(mappings)))
	return result, nil
}

// BuildPlan turns mappings into fill instructions. With autoOnly set,
// only mappings that cleared the confidence gate are included.
func BuildPlan(generation uint64, mappings []domain.FieldMapping, autoOnly bool) domain.FillPlan {
	plan := domain.FillPlan{Generation: generation}
	for _, m := range mappings {
		if !m.HasMatch() {
			continue
		}
		if autoOnly && !m.AutoFill {
			continue
		}
		plan.Instructions = append(plan.Instructions, domain.FillInstruction{
			FieldOpid: m.FieldOpid,
			Value:     m.FillValue(),
		})
	}
	return plan
}

func flattenFields(forms []domain.FormSnapshot) []domain.FieldSnapshot {
	var out []domain.FieldSnapshot
	for _, form := range forms {
		out = append(out, form.Fields...)
	}
	return out
}

// recordUsage bumps usage counters for the memories that were written
// into the page. Best effort: a failed counter never fails the run.
func (o *Orchestrator) recordUsage(ctx context.Context, plan domain.FillPlan, mappings []domain.FieldMapping) {
	byOpid := make(map[string]string, len(mappings))
	for _, m := range mappings {
		if m.MemoryID != "" {
			byOpid[m.FieldOpid] = m.MemoryID
		}
	}
	seen := make(map[string]struct{})
	for _, inst := range plan.Instructions {
		memID, ok := byOpid[inst.FieldOpid]
		if !ok {
			continue
		}
		if _, dup := seen[memID]; dup {
			continue
		}
		seen[memID] = struct{}{}
		id, err := uuid.Parse(memID)
		if err != nil {
			continue
		}
		if err := o.store.RecordUsage(ctx, id); err != nil {
			o.logger.Warn("usage counter update failed", zap.String("memory_id", memID), zap.Error(err))
		}
	}
}

func (o *Orchestrator) recordPass(trigger, status string, fields int) {
	if o.metrics != nil {
		o.metrics.RecordDetectionPass(trigger, status, fields)
	}
}
