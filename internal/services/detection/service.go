package detection

import (
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
)

// Service runs the full per-frame detection pipeline: enumerate, quality
// filter, cache into the session, and project snapshots for transport.
type Service struct {
	detector *Detector
	filter   *QualityFilter
	logger   *zap.Logger
}

// NewService creates a detection service.
func NewService(logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		detector: NewDetector(logger),
		filter:   NewQualityFilter(logger),
		logger:   logger,
	}
}

// Detect runs one detection pass over doc and returns the serializable
// result. When session is non-nil the pass is cached into it, bumping
// its generation. Failures degrade to an unsuccessful result rather than
// an error: a frame that cannot be read simply contributes no fields.
func (s *Service) Detect(doc *dom.Document, frame domain.FrameInfo, session *Session) domain.DetectResult {
	if doc == nil || doc.Root == nil {
		return domain.DetectResult{
			Success:   false,
			FrameInfo: frame,
			Error:     "document unavailable",
		}
	}

	raw := s.detector.DetectAll(doc)
	filtered, stats := s.filter.Apply(raw)

	if session != nil {
		session.Refresh(doc, filtered, stats)
	}

	result := domain.DetectResult{
		Success:        true,
		FrameInfo:      frame,
		WebsiteContext: ClassifyWebsite(doc, filtered),
		Forms:          make([]domain.FormSnapshot, 0, len(filtered)),
	}
	for _, form := range filtered {
		snap := form.Snapshot()
		result.TotalFields += len(snap.Fields)
		result.Forms = append(result.Forms, snap)
	}

	s.logger.Debug("frame detection complete",
		zap.String("url", frame.URL),
		zap.Bool("main_frame", frame.IsMainFrame),
		zap.Int("forms", len(result.Forms)),
		zap.Int("fields", result.TotalFields),
	)
	return result
}
