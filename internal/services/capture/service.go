package capture

import (
	"context"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/observability"
)

// Store is the slice of the memory repository the capture path needs.
type Store interface {
	List(ctx context.Context) ([]domain.MemoryEntry, error)
	Create(ctx context.Context, entry *domain.MemoryEntry) error
	Update(ctx context.Context, entry *domain.MemoryEntry) error
}

// Result reports a capture operation. SavedCount sums creates and
// updates; skips do not count as saved.
type Result struct {
	Success    bool `json:"success"`
	SavedCount int  `json:"saved_count"`
	Created    int  `json:"created"`
	Updated    int  `json:"updated"`
	Skipped    int  `json:"skipped"`
}

// Service persists captured form submissions as memories, deduplicating
// against the existing set.
type Service struct {
	store   Store
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a capture service.
func NewService(store Store, metrics *observability.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, metrics: metrics, logger: logger}
}

// SaveCaptured dedups and persists captured fields. A storage failure
// anywhere returns {success: false, 0}; no partial-write guarantee is
// made.
func (s *Service) SaveCaptured(ctx context.Context, captured []domain.CapturedField) Result {
	existing, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("listing memories for capture failed", zap.Error(err))
		s.record("failed")
		return Result{}
	}

	plan := BuildPlan(captured, existing)

	created := 0
	for _, cap := range plan.Creates {
		entry := domain.NewMemoryEntry(cap.Question, cap.Answer, categoryFor(cap), domain.SourceAutofill)
		entry.FieldPurpose = cap.FieldPurpose
		if err := s.store.Create(ctx, entry); err != nil {
			s.logger.Error("creating captured memory failed",
				zap.String("question", cap.Question), zap.Error(err))
			s.record("failed")
			return Result{}
		}
		s.record("created")
		created++
	}

	updated := 0
	for _, up := range plan.Updates {
		up.Memory.UpdateAnswer(up.Answer, 1.0)
		if err := s.store.Update(ctx, up.Memory); err != nil {
			s.logger.Error("updating captured memory failed",
				zap.String("memory_id", up.Memory.ID.String()), zap.Error(err))
			s.record("failed")
			return Result{}
		}
		s.record("updated")
		updated++
	}

	for i := 0; i < plan.Skipped; i++ {
		s.record("skipped")
	}

	s.logger.Info("capture complete",
		zap.Int("created", created),
		zap.Int("updated", updated),
		zap.Int("skipped", plan.Skipped),
	)
	return Result{
		Success:    true,
		SavedCount: created + updated,
		Created:    created,
		Updated:    updated,
		Skipped:    plan.Skipped,
	}
}

func (s *Service) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCapture(outcome)
	}
}

// categoryFor derives a memory category from the captured field's
// inferred purpose.
func categoryFor(cap domain.CapturedField) domain.MemoryCategory {
	switch cap.FieldPurpose {
	case domain.PurposeEmail, domain.PurposePhone:
		return domain.CategoryContact
	case domain.PurposeName:
		return domain.CategoryPersonal
	case domain.PurposeAddress, domain.PurposeCity, domain.PurposeState,
		domain.PurposeZip, domain.PurposeCountry:
		return domain.CategoryAddress
	case domain.PurposeCompany, domain.PurposeTitle:
		return domain.CategoryWork
	default:
		return domain.CategoryOther
	}
}
