package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/pkg/httputil"
)

// MemoryHandler handles memory store requests
type MemoryHandler struct {
	repo   *sqlite.MemoryRepository
	logger *zap.Logger
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(repo *sqlite.MemoryRepository, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{repo: repo, logger: logger}
}

// MemoryResponse is the API representation of a memory entry
type MemoryResponse struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags,omitempty"`
	Confidence   float64  `json:"confidence"`
	FieldPurpose string   `json:"field_purpose,omitempty"`
	Source       string   `json:"source"`
	UsageCount   int      `json:"usage_count"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toMemoryResponse(m *domain.MemoryEntry) MemoryResponse {
	return MemoryResponse{
		ID:           m.ID.String(),
		Question:     m.Question,
		Answer:       m.Answer,
		Category:     string(m.Category),
		Tags:         m.Tags,
		Confidence:   m.Confidence,
		FieldPurpose: string(m.FieldPurpose),
		Source:       string(m.Source),
		UsageCount:   m.UsageCount,
		CreatedAt:    m.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:    m.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// CreateMemoryRequest is the payload for creating a memory
type CreateMemoryRequest struct {
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	Category     string   `json:"category"`
	Tags         []string `json:"tags"`
	FieldPurpose string   `json:"field_purpose"`
}

// List handles GET /api/v1/memories
func (h *MemoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var (
		memories []domain.MemoryEntry
		err      error
	)

	if category := r.URL.Query().Get("category"); category != "" {
		memories, err = h.repo.ListByCategory(r.Context(), domain.MemoryCategory(category))
	} else {
		memories, err = h.repo.List(r.Context())
	}
	if err != nil {
		h.logger.Error("Failed to list memories", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	response := make([]MemoryResponse, len(memories))
	for i := range memories {
		response[i] = toMemoryResponse(&memories[i])
	}

	httputil.JSON(w, http.StatusOK, response)
}

// Get handles GET /api/v1/memories/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid memory ID format", nil)
		return
	}

	memory, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toMemoryResponse(memory))
}

// Create handles POST /api/v1/memories
func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMemoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if strings.TrimSpace(req.Answer) == "" {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("answer", "answer is required"))
		return
	}
	category := domain.MemoryCategory(req.Category)
	if req.Category != "" && !category.IsValid() {
		httputil.ErrorFromDomain(w, domain.ErrValidationField("category", "unknown category"))
		return
	}

	entry := domain.NewMemoryEntry(req.Question, req.Answer, category, domain.SourceManual)
	entry.Tags = req.Tags
	entry.FieldPurpose = domain.FieldPurpose(req.FieldPurpose)

	if err := h.repo.Create(r.Context(), entry); err != nil {
		h.logger.Error("Failed to create memory", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusCreated, toMemoryResponse(entry))
}

// Update handles PUT /api/v1/memories/{id}
func (h *MemoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid memory ID format", nil)
		return
	}

	var req CreateMemoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	memory, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if req.Question != "" {
		memory.Question = req.Question
	}
	if req.Answer != "" {
		memory.UpdateAnswer(req.Answer, 1.0)
	}
	if req.Category != "" {
		category := domain.MemoryCategory(req.Category)
		if !category.IsValid() {
			httputil.ErrorFromDomain(w, domain.ErrValidationField("category", "unknown category"))
			return
		}
		memory.Category = category
	}
	if req.Tags != nil {
		memory.Tags = req.Tags
	}

	if err := h.repo.Update(r.Context(), memory); err != nil {
		h.logger.Error("Failed to update memory", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, toMemoryResponse(memory))
}

// Delete handles DELETE /api/v1/memories/{id}
func (h *MemoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid memory ID format", nil)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]string{"id": id.String(), "status": "deleted"})
}

// Export handles GET /api/v1/memories/export
func (h *MemoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="memories.csv"`)

	if err := h.repo.ExportCSV(r.Context(), w); err != nil {
		h.logger.Error("Failed to export memories", zap.Error(err))
	}
}

// Import handles POST /api/v1/memories/import
func (h *MemoryHandler) Import(w http.ResponseWriter, r *http.Request) {
	imported, err := h.repo.ImportCSV(r.Context(), r.Body)
	if err != nil {
		h.logger.Error("Failed to import memories", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]int{"imported": imported})
}
