package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/dom"
	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/internal/services/autofill"
	"github.com/memfill/memfill/internal/services/capture"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/pkg/httputil"
)

// EngineHandler exposes the detection, matching, capture, and fill
// operations over HTTP. It owns the main-frame session: detect and fill
// requests from the same client operate against the same generation
// counter.
type EngineHandler struct {
	detection *detection.Service
	session   *detection.Session
	matcher   autofill.Matcher
	filler    *autofill.Filler
	capture   *capture.Service
	repo      *sqlite.MemoryRepository
	threshold float64
	logger    *zap.Logger
}

// NewEngineHandler creates an engine handler.
func NewEngineHandler(
	detectionSvc *detection.Service,
	session *detection.Session,
	matcher autofill.Matcher,
	filler *autofill.Filler,
	captureSvc *capture.Service,
	repo *sqlite.MemoryRepository,
	threshold float64,
	logger *zap.Logger,
) *EngineHandler {
	if threshold <= 0 {
		threshold = autofill.DefaultConfidenceThreshold
	}
	return &EngineHandler{
		detection: detectionSvc,
		session:   session,
		matcher:   matcher,
		filler:    filler,
		capture:   captureSvc,
		repo:      repo,
		threshold: threshold,
		logger:    logger,
	}
}

// DetectRequest is the payload for a detection pass
type DetectRequest struct {
	HTML string `json:"html"`
	URL  string `json:"url"`
}

// DetectResponse wraps the detection result with the generation the
// opids belong to.
type DetectResponse struct {
	Generation uint64              `json:"generation"`
	Result     domain.DetectResult `json:"result"`
	Stats      any                 `json:"stats"`
}

// Detect handles POST /api/v1/detect
func (h *EngineHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if req.HTML == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("html", "html is required"))
		return
	}

	doc, err := dom.Parse(req.HTML, req.URL)
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ErrDetectionFailed("parsing document", err))
		return
	}

	result := h.detection.Detect(doc, domain.FrameInfo{IsMainFrame: true, URL: req.URL}, h.session)

	httputil.JSON(w, http.StatusOK, DetectResponse{
		Generation: h.session.Generation(),
		Result:     result,
		Stats:      h.session.Stats(),
	})
}

// MatchRequest is the payload for a matching pass
type MatchRequest struct {
	Fields         []domain.FieldSnapshot `json:"fields"`
	WebsiteContext *domain.WebsiteContext `json:"website_context,omitempty"`
}

// Match handles POST /api/v1/match
func (h *EngineHandler) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if len(req.Fields) == 0 {
		httputil.JSON(w, http.StatusOK, []domain.FieldMapping{})
		return
	}

	memories, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to load memories for matching", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	mappings := h.matcher.MatchFields(r.Context(), req.Fields, memories, req.WebsiteContext)
	for i := range mappings {
		m := &mappings[i]
		m.AutoFill = m.HasMatch() && m.Confidence >= h.threshold
	}

	httputil.JSON(w, http.StatusOK, mappings)
}

// AutofillResponse is the combined detect-and-match result: everything
// a client needs to render a preview and post a fill plan back.
type AutofillResponse struct {
	Generation uint64                `json:"generation"`
	Result     domain.DetectResult   `json:"result"`
	Mappings   []domain.FieldMapping `json:"mappings"`
	Plan       domain.FillPlan       `json:"plan"`
}

// Autofill handles POST /api/v1/autofill. One round trip from raw HTML
// to a ready fill plan, for clients that have no use for the
// intermediate detect and match calls.
func (h *EngineHandler) Autofill(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	if req.HTML == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("html", "html is required"))
		return
	}

	doc, err := dom.Parse(req.HTML, req.URL)
	if err != nil {
		httputil.ErrorFromDomain(w, domain.ErrDetectionFailed("parsing document", err))
		return
	}

	result := h.detection.Detect(doc, domain.FrameInfo{IsMainFrame: true, URL: req.URL}, h.session)
	generation := h.session.Generation()

	var fields []domain.FieldSnapshot
	for _, form := range result.Forms {
		fields = append(fields, form.Fields...)
	}

	resp := AutofillResponse{
		Generation: generation,
		Result:     result,
		Plan:       domain.FillPlan{Generation: generation},
	}
	if len(fields) == 0 {
		httputil.JSON(w, http.StatusOK, resp)
		return
	}

	memories, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to load memories for matching", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	mappings := h.matcher.MatchFields(r.Context(), fields, memories, result.WebsiteContext)
	for i := range mappings {
		m := &mappings[i]
		m.AutoFill = m.HasMatch() && m.Confidence >= h.threshold
	}

	resp.Mappings = mappings
	resp.Plan = autofill.BuildPlan(generation, mappings, false)
	httputil.JSON(w, http.StatusOK, resp)
}

// CaptureRequest is the payload for saving submitted form values
type CaptureRequest struct {
	Fields []domain.CapturedField `json:"fields"`
}

// Capture handles POST /api/v1/capture
func (h *EngineHandler) Capture(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	result := h.capture.SaveCaptured(r.Context(), req.Fields)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	httputil.JSON(w, status, result)
}

// Fill handles POST /api/v1/fill
func (h *EngineHandler) Fill(w http.ResponseWriter, r *http.Request) {
	var plan domain.FillPlan
	if err := httputil.DecodeJSON(r, &plan); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	report, err := h.filler.Fill(plan)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
