package matching

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/llm"
	"github.com/memfill/memfill/internal/observability"
)

// aiMatchResponse is the structured schema the model is held to.
type aiMatchResponse struct {
	Matches []aiMatch `json:"matches"`
}

type aiMatch struct {
	FieldOpid            string   `json:"fieldOpid"`
	MemoryID             *string  `json:"memoryId"`
	Confidence           float64  `json:"confidence"`
	Reasoning            string   `json:"reasoning"`
	AlternativeMemoryIDs []string `json:"alternativeMemoryIds"`
	RephrasedAnswer      *string  `json:"rephrasedAnswer"`
}

// AIMatcher matches fields against memories through a generative model,
// with the fallback matcher as its safety net. Failures are all-or-
// nothing per batch: any provider, schema, or transport error downgrades
// the entire request to the fallback, never single fields.
type AIMatcher struct {
	provider llm.Provider
	fallback *FallbackMatcher
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewAIMatcher creates an AI matcher.
func NewAIMatcher(provider llm.Provider, fallback *FallbackMatcher, metrics *observability.Metrics, logger *zap.Logger) *AIMatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AIMatcher{provider: provider, fallback: fallback, metrics: metrics, logger: logger}
}

// MatchFields produces one mapping per matchable field.
func (a *AIMatcher) MatchFields(ctx context.Context, fields []domain.FieldSnapshot, memories []domain.MemoryEntry, site *domain.WebsiteContext) []domain.FieldMapping {
	compressed := CompressFields(fields)
	if len(compressed) == 0 {
		return nil
	}
	compressedMems := CompressMemories(memories)
	if a.provider == nil || len(compressedMems) == 0 {
		return a.downgrade(fields, memories, "no provider or no memories")
	}

	var resp aiMatchResponse
	usage, err := a.provider.CompleteJSON(ctx, SystemPrompt(), UserPrompt(compressed, compressedMems, site), &resp)
	if err != nil {
		a.logger.Warn("model matching failed, using fallback",
			zap.Error(err),
			zap.String("model", a.provider.Model()))
		return a.downgrade(fields, memories, err.Error())
	}
	if usage != nil {
		a.logger.Debug("model matching complete",
			zap.Int("input_tokens", usage.InputTokens),
			zap.Int("output_tokens", usage.OutputTokens),
			zap.Int("fields", len(compressed)))
	}

	return a.postProcess(compressed, memories, resp)
}

func (a *AIMatcher) downgrade(fields []domain.FieldSnapshot, memories []domain.MemoryEntry, reason string) []domain.FieldMapping {
	if a.metrics != nil {
		a.metrics.RecordFallback()
	}
	a.logger.Info("batch downgraded to fallback matcher", zap.String("reason", reason))
	return a.fallback.MatchFields(fields, memories)
}

// postProcess enforces the response contract: one mapping per sent
// field, hallucinated opids neutralized, confidence rounded and clamped,
// values resolved only above the confidence floor.
func (a *AIMatcher) postProcess(sent []CompressedField, memories []domain.MemoryEntry, resp aiMatchResponse) []domain.FieldMapping {
	memByID := make(map[string]*domain.MemoryEntry, len(memories))
	for i := range memories {
		memByID[memories[i].ID.String()] = &memories[i]
	}
	sentOpids := make(map[string]bool, len(sent))
	for _, f := range sent {
		sentOpids[f.Opid] = true
	}

	byOpid := make(map[string]aiMatch, len(resp.Matches))
	var mappings []domain.FieldMapping
	for _, m := range resp.Matches {
		if !sentOpids[m.FieldOpid] {
			// The model invented an opid. Neutralize it instead of
			// letting a hallucinated id reach the fill path.
			mappings = append(mappings, noMatch(m.FieldOpid, "field not found"))
			continue
		}
		byOpid[m.FieldOpid] = m
	}

	ordered := make([]domain.FieldMapping, 0, len(sent)+len(mappings))
	for _, f := range sent {
		m, ok := byOpid[f.Opid]
		if !ok {
			ordered = append(ordered, noMatch(f.Opid, "model returned no mapping for this field"))
			continue
		}
		ordered = append(ordered, a.buildMapping(f, m, memByID))
	}
	return append(ordered, mappings...)
}

func (a *AIMatcher) buildMapping(field CompressedField, m aiMatch, memByID map[string]*domain.MemoryEntry) domain.FieldMapping {
	confidence := clamp01(round2(m.Confidence))

	mapping := domain.FieldMapping{
		FieldOpid:  field.Opid,
		Confidence: confidence,
		Reasoning:  m.Reasoning,
	}

	var memory *domain.MemoryEntry
	if m.MemoryID != nil {
		memory = memByID[*m.MemoryID]
	}
	if memory == nil || confidence < MinMatchConfidence {
		a.recordMatch("no_match", confidence)
		return mapping
	}

	mapping.MemoryID = memory.ID.String()
	mapping.Value = memory.Answer
	if m.RephrasedAnswer != nil && *m.RephrasedAnswer != "" && *m.RephrasedAnswer != memory.Answer {
		mapping.RephrasedValue = *m.RephrasedAnswer
		mapping.IsRephrased = true
	}

	altConfidence := confidence - AlternativePenalty
	if altConfidence < 0 {
		altConfidence = 0
	}
	for _, altID := range m.AlternativeMemoryIDs {
		if len(mapping.Alternatives) == MaxAlternatives {
			break
		}
		alt := memByID[altID]
		if alt == nil || altID == mapping.MemoryID {
			continue
		}
		mapping.Alternatives = append(mapping.Alternatives, domain.AlternativeMatch{
			MemoryID:   altID,
			Value:      alt.Answer,
			Confidence: altConfidence,
		})
	}

	a.recordMatch("matched", confidence)
	return mapping
}

func (a *AIMatcher) recordMatch(outcome string, confidence float64) {
	if a.metrics != nil {
		a.metrics.RecordMatch("ai", outcome, confidence)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
