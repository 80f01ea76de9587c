package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/repository/sqlite"
	"github.com/memfill/memfill/internal/services/autofill"
	"github.com/memfill/memfill/internal/services/capture"
	"github.com/memfill/memfill/internal/services/detection"
	"github.com/memfill/memfill/internal/services/matching"
	"github.com/memfill/memfill/pkg/httputil"
)

func newTestRepo(t *testing.T) *sqlite.MemoryRepository {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlite.NewMemoryRepository(db)
}

func newEngine(t *testing.T, repo *sqlite.MemoryRepository) (*EngineHandler, *detection.Session) {
	t.Helper()
	session := detection.NewSession()
	filler := autofill.NewFiller(session, nil, nil)
	captureSvc := capture.NewService(repo, nil, zap.NewNop())
	matcher := matching.NewFallbackMatcher(nil)
	return NewEngineHandler(detection.NewService(nil), session, fallbackAdapter{matcher}, filler, captureSvc, repo, 0, zap.NewNop()), session
}

// fallbackAdapter lifts the fallback matcher to the context-aware
// Matcher interface the handler expects.
type fallbackAdapter struct {
	m *matching.FallbackMatcher
}

func (a fallbackAdapter) MatchFields(_ context.Context, fields []domain.FieldSnapshot, memories []domain.MemoryEntry, _ *domain.WebsiteContext) []domain.FieldMapping {
	return a.m.MatchFields(fields, memories)
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestMemoryHandler_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	handler := NewMemoryHandler(repo, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Create(rec, postJSON("/api/v1/memories", `{"question": "Email address", "answer": "ada@example.com", "category": "contact"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeResponse(t, rec)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "Email address", data["question"])
	assert.Equal(t, "contact", data["category"])
	assert.Equal(t, "manual", data["source"])

	id := data["id"].(string)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+id, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec = httptest.NewRecorder()
	handler.Get(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryHandler_CreateValidation(t *testing.T) {
	handler := NewMemoryHandler(newTestRepo(t), zap.NewNop())

	t.Run("missing answer", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Create(rec, postJSON("/api/v1/memories", `{"question": "Email"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Create(rec, postJSON("/api/v1/memories", `{"answer": "x", "category": "starsign"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Create(rec, postJSON("/api/v1/memories", `{`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestMemoryHandler_GetInvalidAndMissing(t *testing.T) {
	handler := NewMemoryHandler(newTestRepo(t), zap.NewNop())

	get := func(id string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/memories/"+id, nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rec := httptest.NewRecorder()
		handler.Get(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, get("not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, get("00000000-0000-0000-0000-000000000001").Code)
}

func TestMemoryHandler_ListByCategory(t *testing.T) {
	repo := newTestRepo(t)
	handler := NewMemoryHandler(repo, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewMemoryEntry("Email", "ada@example.com", domain.CategoryContact, domain.SourceManual)))
	require.NoError(t, repo.Create(ctx, domain.NewMemoryEntry("City", "London", domain.CategoryAddress, domain.SourceManual)))

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/memories?category=contact", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	items := resp.Data.([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, "Email", items[0].(map[string]interface{})["question"])
}

func TestMemoryHandler_ImportExportRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	handler := NewMemoryHandler(repo, zap.NewNop())

	csv := "question,answer,category,tags\nEmail address,ada@example.com,contact,\nCity,London,address,\n"
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/memories/import", strings.NewReader(csv))
	handler.Import(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, float64(2), resp.Data.(map[string]interface{})["imported"])

	rec = httptest.NewRecorder()
	handler.Export(rec, httptest.NewRequest(http.MethodGet, "/api/v1/memories/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "ada@example.com")
}

const detectPage = `<html><body><form method="post" action="/join">
<label for="email">Email</label><input id="email" type="email" name="email">
<label for="name">Full name</label><input id="name" type="text" name="full_name">
</form></body></html>`

func TestEngineHandler_Detect(t *testing.T) {
	engine, session := newEngine(t, newTestRepo(t))

	body, _ := json.Marshal(DetectRequest{HTML: detectPage, URL: "https://shop.example.com/signup"})
	rec := httptest.NewRecorder()
	engine.Detect(rec, postJSON("/api/v1/detect", string(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data DetectResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.Data.Generation)
	assert.True(t, resp.Data.Result.Success)
	assert.Equal(t, 2, resp.Data.Result.TotalFields)
	assert.Equal(t, uint64(1), session.Generation())
}

func TestEngineHandler_DetectRequiresHTML(t *testing.T) {
	engine, _ := newEngine(t, newTestRepo(t))
	rec := httptest.NewRecorder()
	engine.Detect(rec, postJSON("/api/v1/detect", `{"url": "https://x.example"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEngineHandler_Match(t *testing.T) {
	repo := newTestRepo(t)
	engine, _ := newEngine(t, repo)

	mem := domain.NewMemoryEntry("Email address", "ada@example.com", domain.CategoryContact, domain.SourceManual)
	mem.FieldPurpose = domain.PurposeEmail
	require.NoError(t, repo.Create(context.Background(), mem))

	reqBody := MatchRequest{Fields: []domain.FieldSnapshot{{
		Opid: "__0",
		Metadata: domain.FieldMetadata{
			FieldType:    domain.FieldTypeEmail,
			FieldPurpose: domain.PurposeEmail,
			Labels:       domain.FieldLabels{Explicit: "Email"},
		},
	}}}
	body, _ := json.Marshal(reqBody)

	rec := httptest.NewRecorder()
	engine.Match(rec, postJSON("/api/v1/match", string(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data []domain.FieldMapping `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, mem.ID.String(), resp.Data[0].MemoryID)
	assert.Equal(t, "ada@example.com", resp.Data[0].Value)
	assert.False(t, resp.Data[0].AutoFill, "fallback confidence sits below the auto-fill gate")
}

func TestEngineHandler_Capture(t *testing.T) {
	repo := newTestRepo(t)
	engine, _ := newEngine(t, repo)

	body := `{"fields": [
		{"question": "Email address", "answer": "ada@example.com", "field_purpose": "email"},
		{"question": "Favorite dinosaur", "answer": "Deinonychus"}
	]}`
	rec := httptest.NewRecorder()
	engine.Capture(rec, postJSON("/api/v1/capture", body))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, true, data["success"])
	assert.Equal(t, float64(2), data["saved_count"])

	memories, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, memories, 2)
}

func TestEngineHandler_FillAfterDetect(t *testing.T) {
	engine, session := newEngine(t, newTestRepo(t))

	body, _ := json.Marshal(DetectRequest{HTML: detectPage, URL: "https://shop.example.com/signup"})
	engine.Detect(httptest.NewRecorder(), postJSON("/api/v1/detect", string(body)))

	var opid string
	for _, form := range session.Forms() {
		for _, f := range form.Fields {
			if f.Metadata.Name == "email" {
				opid = f.Opid
			}
		}
	}
	require.NotEmpty(t, opid)

	fill := fmt.Sprintf(`{"generation": 1, "fields_to_fill": [{"field_opid": %q, "value": "ada@example.com"}]}`, opid)
	rec := httptest.NewRecorder()
	engine.Fill(rec, postJSON("/api/v1/fill", fill))

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Equal(t, float64(1), resp.Data.(map[string]interface{})["filled"])
}

func TestEngineHandler_FillStaleGeneration(t *testing.T) {
	engine, _ := newEngine(t, newTestRepo(t))

	body, _ := json.Marshal(DetectRequest{HTML: detectPage, URL: "https://shop.example.com"})
	engine.Detect(httptest.NewRecorder(), postJSON("/api/v1/detect", string(body)))
	engine.Detect(httptest.NewRecorder(), postJSON("/api/v1/detect", string(body)))

	rec := httptest.NewRecorder()
	engine.Fill(rec, postJSON("/api/v1/fill", `{"generation": 1, "fields_to_fill": [{"field_opid": "__0", "value": "x"}]}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEngineHandler_Autofill(t *testing.T) {
	repo := newTestRepo(t)
	engine, session := newEngine(t, repo)

	mem := domain.NewMemoryEntry("Email address", "ada@example.com", domain.CategoryContact, domain.SourceManual)
	mem.FieldPurpose = domain.PurposeEmail
	require.NoError(t, repo.Create(context.Background(), mem))

	body, _ := json.Marshal(DetectRequest{HTML: detectPage, URL: "https://shop.example.com/signup"})
	rec := httptest.NewRecorder()
	engine.Autofill(rec, postJSON("/api/v1/autofill", string(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data AutofillResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, uint64(1), resp.Data.Generation)
	assert.Equal(t, 2, resp.Data.Result.TotalFields)
	assert.Len(t, resp.Data.Mappings, 2, "one mapping per detected field")
	assert.Equal(t, session.Generation(), resp.Data.Plan.Generation)

	require.Len(t, resp.Data.Plan.Instructions, 1, "only the matched field enters the plan")
	assert.Equal(t, "ada@example.com", resp.Data.Plan.Instructions[0].Value)
}

func TestEngineHandler_AutofillEmptyPage(t *testing.T) {
	engine, _ := newEngine(t, newTestRepo(t))

	body, _ := json.Marshal(DetectRequest{HTML: "<html><body><p>nothing here</p></body></html>"})
	rec := httptest.NewRecorder()
	engine.Autofill(rec, postJSON("/api/v1/autofill", string(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data AutofillResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Mappings)
	assert.Empty(t, resp.Data.Plan.Instructions)
}
