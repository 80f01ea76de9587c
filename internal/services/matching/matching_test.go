package matching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfill/memfill/internal/domain"
	"github.com/memfill/memfill/internal/llm"
)

func snap(opid string, ft domain.FieldType, purpose domain.FieldPurpose, label string) domain.FieldSnapshot {
	return domain.FieldSnapshot{
		Opid: opid,
		Metadata: domain.FieldMetadata{
			FieldType:    ft,
			FieldPurpose: purpose,
			Labels:       domain.FieldLabels{Explicit: label},
		},
	}
}

func mem(question, answer string, category domain.MemoryCategory) domain.MemoryEntry {
	return *domain.NewMemoryEntry(question, answer, category, domain.SourceManual)
}

func TestCompressFields(t *testing.T) {
	fields := []domain.FieldSnapshot{
		{
			Opid: "__0",
			Metadata: domain.FieldMetadata{
				FieldType:    domain.FieldTypeEmail,
				FieldPurpose: domain.PurposeEmail,
				Labels:       domain.FieldLabels{Explicit: "Email", Aria: "email"},
				Placeholder:  "you@example.com",
				Name:         "user_email",
			},
		},
		{
			Opid:     "__1",
			Metadata: domain.FieldMetadata{FieldType: domain.FieldTypePassword},
		},
		{
			Opid: "__2",
			Metadata: domain.FieldMetadata{
				FieldType: domain.FieldTypeText,
				Name:      "f3c9a71e2b8d4a6c9e1f3a5b7c9d1e2f", // generated noise
				ID:        "city",
			},
		},
	}

	out := CompressFields(fields)
	require.Len(t, out, 2, "password fields never reach the prompt")

	assert.Equal(t, "__0", out[0].Opid)
	assert.Equal(t, []string{"Email"}, out[0].Labels, "duplicate label sources collapse")
	assert.Contains(t, out[0].Context, "you@example.com")
	assert.Contains(t, out[0].Context, "user_email")

	assert.NotContains(t, out[1].Context, "f3c9a71e", "cryptic name filtered")
	assert.Contains(t, out[1].Context, "city")
}

func TestCompressFields_Truncation(t *testing.T) {
	fields := make([]domain.FieldSnapshot, MaxFieldsPerPage+10)
	for i := range fields {
		fields[i] = snap(fmt.Sprintf("__%d", i), domain.FieldTypeText, domain.PurposeUnknown, "q")
	}
	out := CompressFields(fields)
	assert.Len(t, out, MaxFieldsPerPage)
	assert.Equal(t, "__0", out[0].Opid, "oldest-first slice, not ranked")
}

func TestCompressMemories(t *testing.T) {
	alive := mem("email address", "a@b.c", domain.CategoryContact)
	dead := mem("old", "x", domain.CategoryOther)
	dead.Delete()

	out := CompressMemories([]domain.MemoryEntry{alive, dead})
	require.Len(t, out, 1)
	assert.Equal(t, alive.ID.String(), out[0].ID)
	assert.Equal(t, "contact", out[0].Category)
}

func TestUserPrompt_TruncatesLongAnswers(t *testing.T) {
	long := mem("bio", strings.Repeat("x", MaxAnswerPromptLen+50), domain.CategoryPersonal)
	prompt := UserPrompt(
		CompressFields([]domain.FieldSnapshot{snap("__0", domain.FieldTypeTextarea, domain.PurposeUnknown, "Bio")}),
		CompressMemories([]domain.MemoryEntry{long}),
		nil,
	)

	assert.Contains(t, prompt, strings.Repeat("x", MaxAnswerPromptLen)+"...")
	assert.NotContains(t, prompt, strings.Repeat("x", MaxAnswerPromptLen+1))
	// The compressed struct itself keeps the full answer.
	assert.Len(t, CompressMemories([]domain.MemoryEntry{long})[0].Answer, MaxAnswerPromptLen+50)
}

func TestUserPrompt_IncludesWebsiteContext(t *testing.T) {
	prompt := UserPrompt(nil, nil, &domain.WebsiteContext{
		PageType:    domain.PageTypeJobPortal,
		FormPurpose: "job application",
		Title:       "Apply - Acme",
	})
	assert.Contains(t, prompt, "job-portal")
	assert.Contains(t, prompt, "job application")
	assert.Contains(t, prompt, "Apply - Acme")
}

func TestFallback_OneMappingPerFieldInOrder(t *testing.T) {
	fields := []domain.FieldSnapshot{
		snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email"),
		snap("__1", domain.FieldTypeText, domain.PurposeUnknown, "Favorite dinosaur"),
		snap("__2", domain.FieldTypeTel, domain.PurposePhone, "Phone"),
	}
	memories := []domain.MemoryEntry{
		mem("email address", "a@b.c", domain.CategoryContact),
		mem("phone number", "555-0100", domain.CategoryContact),
	}

	mappings := NewFallbackMatcher(nil).MatchFields(fields, memories)
	require.Len(t, mappings, 3)
	for i, m := range mappings {
		assert.Equal(t, fields[i].Opid, m.FieldOpid)
	}

	assert.True(t, mappings[0].HasMatch())
	assert.Equal(t, "a@b.c", mappings[0].Value)
	assert.Equal(t, FallbackMatchConfidence, mappings[0].Confidence)

	assert.False(t, mappings[1].HasMatch())
	assert.Zero(t, mappings[1].Confidence)
	assert.NotEmpty(t, mappings[1].Reasoning)

	assert.Equal(t, "555-0100", mappings[2].Value)
}

func TestFallback_PicksStrongestQuestionOverlap(t *testing.T) {
	fields := []domain.FieldSnapshot{
		snap("__0", domain.FieldTypeText, domain.PurposeName, "First name"),
	}
	first := mem("first name", "Ada", domain.CategoryPersonal)
	last := mem("last name", "Lovelace", domain.CategoryPersonal)

	mappings := NewFallbackMatcher(nil).MatchFields(fields, []domain.MemoryEntry{last, first})
	require.Len(t, mappings, 1)
	assert.Equal(t, first.ID.String(), mappings[0].MemoryID)
	assert.Equal(t, "Ada", mappings[0].Value)
}

func TestFallback_PasswordNeverMatches(t *testing.T) {
	fields := []domain.FieldSnapshot{
		snap("__0", domain.FieldTypePassword, domain.PurposeUnknown, "Password"),
	}
	memories := []domain.MemoryEntry{mem("password", "hunter2", domain.CategoryOther)}

	mappings := NewFallbackMatcher(nil).MatchFields(fields, memories)
	require.Len(t, mappings, 1)
	assert.False(t, mappings[0].HasMatch())
	assert.Zero(t, mappings[0].Confidence)
}

func TestFallback_EmptyInputs(t *testing.T) {
	fm := NewFallbackMatcher(nil)
	assert.Empty(t, fm.MatchFields(nil, nil))

	mappings := fm.MatchFields(
		[]domain.FieldSnapshot{snap("__0", domain.FieldTypeText, domain.PurposeUnknown, "Anything")},
		nil,
	)
	require.Len(t, mappings, 1, "zero memories still yields a mapping per field")
	assert.False(t, mappings[0].HasMatch())
}

// fakeProvider returns a canned matching response, or fails.
type fakeProvider struct {
	resp aiMatchResponse
	err  error
}

func (f *fakeProvider) Complete(context.Context, string, string) (string, *llm.Usage, error) {
	return "", nil, f.err
}

func (f *fakeProvider) CompleteJSON(_ context.Context, _, _ string, result interface{}) (*llm.Usage, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, err := json.Marshal(f.resp)
	if err != nil {
		return nil, err
	}
	return &llm.Usage{InputTokens: 1, OutputTokens: 1}, json.Unmarshal(b, result)
}

func (f *fakeProvider) Model() string { return "fake-model" }

func strp(s string) *string { return &s }

func TestAIMatcher_ResolvesAndRounds(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:  "__0",
		MemoryID:   strp(memory.ID.String()),
		Confidence: 0.856,
		Reasoning:  "email field matches stored email",
	}}}}

	m := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil)
	mappings := m.MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)

	require.Len(t, mappings, 1)
	assert.Equal(t, 0.86, mappings[0].Confidence)
	assert.Equal(t, memory.ID.String(), mappings[0].MemoryID)
	assert.Equal(t, "a@b.c", mappings[0].Value)
	assert.False(t, mappings[0].IsRephrased)
}

func TestAIMatcher_ClampsConfidence(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:  "__0",
		MemoryID:   strp(memory.ID.String()),
		Confidence: 1.7,
	}}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)
	require.Len(t, mappings, 1)
	assert.Equal(t, 1.0, mappings[0].Confidence)
}

func TestAIMatcher_BelowFloorResolvesNothing(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:  "__0",
		MemoryID:   strp(memory.ID.String()),
		Confidence: 0.2,
		Reasoning:  "weak",
	}}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)
	require.Len(t, mappings, 1)
	assert.Empty(t, mappings[0].MemoryID, "value resolves only at or above the floor")
	assert.Empty(t, mappings[0].Value)
	assert.Equal(t, 0.2, mappings[0].Confidence)
	assert.Equal(t, "weak", mappings[0].Reasoning)
}

func TestAIMatcher_HallucinatedOpidNeutralized(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{
		{FieldOpid: "__0", MemoryID: strp(memory.ID.String()), Confidence: 0.9},
		{FieldOpid: "__999", MemoryID: strp(memory.ID.String()), Confidence: 0.9},
	}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)
	require.Len(t, mappings, 2)
	assert.True(t, mappings[0].HasMatch())

	ghost := mappings[1]
	assert.Equal(t, "__999", ghost.FieldOpid)
	assert.False(t, ghost.HasMatch(), "invented opid must not carry a resolved value")
	assert.Equal(t, "field not found", ghost.Reasoning)
}

func TestAIMatcher_MissingFieldGetsNoMatch(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{
		snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email"),
		snap("__1", domain.FieldTypeText, domain.PurposeCity, "City"),
	}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{
		{FieldOpid: "__0", MemoryID: strp(memory.ID.String()), Confidence: 0.9},
	}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)
	require.Len(t, mappings, 2)
	assert.Equal(t, "__1", mappings[1].FieldOpid)
	assert.False(t, mappings[1].HasMatch())
}

func TestAIMatcher_AlternativesPenalizedAndCapped(t *testing.T) {
	primary := mem("work email", "w@co.com", domain.CategoryWork)
	alts := []domain.MemoryEntry{
		mem("personal email", "p1@x.com", domain.CategoryContact),
		mem("old email", "p2@x.com", domain.CategoryContact),
		mem("school email", "p3@x.com", domain.CategoryContact),
		mem("spare email", "p4@x.com", domain.CategoryContact),
	}
	memories := append([]domain.MemoryEntry{primary}, alts...)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	altIDs := make([]string, len(alts))
	for i, a := range alts {
		altIDs[i] = a.ID.String()
	}
	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:            "__0",
		MemoryID:             strp(primary.ID.String()),
		Confidence:           0.9,
		AlternativeMemoryIDs: altIDs,
	}}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, memories, nil)
	require.Len(t, mappings, 1)
	require.Len(t, mappings[0].Alternatives, MaxAlternatives)
	for _, alt := range mappings[0].Alternatives {
		assert.InDelta(t, 0.8, alt.Confidence, 1e-9)
	}
}

func TestAIMatcher_AlternativePenaltyFloorsAtZero(t *testing.T) {
	primary := mem("email address", "a@b.c", domain.CategoryContact)
	alt := mem("other email", "o@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:            "__0",
		MemoryID:             strp(primary.ID.String()),
		Confidence:           0.05,
		AlternativeMemoryIDs: []string{alt.ID.String()},
	}}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{primary, alt}, nil)
	require.Len(t, mappings, 1)
	// Below the floor: no resolved value, so no alternatives either.
	assert.False(t, mappings[0].HasMatch())
	assert.Empty(t, mappings[0].Alternatives)
}

func TestAIMatcher_Rephrasing(t *testing.T) {
	memory := mem("full name", "Ada Lovelace", domain.CategoryPersonal)
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeText, domain.PurposeName, "First name")}

	provider := &fakeProvider{resp: aiMatchResponse{Matches: []aiMatch{{
		FieldOpid:       "__0",
		MemoryID:        strp(memory.ID.String()),
		Confidence:      0.8,
		RephrasedAnswer: strp("Ada"),
	}}}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)
	require.Len(t, mappings, 1)
	assert.True(t, mappings[0].IsRephrased)
	assert.Equal(t, "Ada", mappings[0].RephrasedValue)
	assert.Equal(t, "Ada Lovelace", mappings[0].Value, "original text retained for preview")
	assert.Equal(t, "Ada", mappings[0].FillValue())
}

func TestAIMatcher_ProviderErrorDowngradesWholeBatch(t *testing.T) {
	memory := mem("email address", "a@b.c", domain.CategoryContact)
	fields := []domain.FieldSnapshot{
		snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email"),
		snap("__1", domain.FieldTypeText, domain.PurposeUnknown, "Favorite dinosaur"),
	}

	provider := &fakeProvider{err: errors.New("provider unavailable")}
	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, []domain.MemoryEntry{memory}, nil)

	require.Len(t, mappings, 2, "fallback still yields one mapping per field")
	assert.Equal(t, FallbackMatchConfidence, mappings[0].Confidence)
	assert.False(t, mappings[1].HasMatch())
}

func TestAIMatcher_NoMemoriesUsesFallback(t *testing.T) {
	fields := []domain.FieldSnapshot{snap("__0", domain.FieldTypeEmail, domain.PurposeEmail, "Email")}
	provider := &fakeProvider{resp: aiMatchResponse{}}

	mappings := NewAIMatcher(provider, NewFallbackMatcher(nil), nil, nil).
		MatchFields(context.Background(), fields, nil, nil)
	require.Len(t, mappings, 1)
	assert.False(t, mappings[0].HasMatch())
}

func TestRoundAndClamp(t *testing.T) {
	assert.Equal(t, 0.33, round2(0.333))
	assert.Equal(t, 0.67, round2(0.666))
	assert.Equal(t, 0.0, clamp01(-0.4))
	assert.Equal(t, 1.0, clamp01(1.3))
}
