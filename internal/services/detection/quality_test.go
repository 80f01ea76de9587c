package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfill/memfill/internal/domain"
)

func labeledField(opid, label string, purpose domain.FieldPurpose) *DetectedField {
	return &DetectedField{
		Opid: opid,
		Metadata: domain.FieldMetadata{
			Labels:       domain.FieldLabels{Explicit: label},
			FieldPurpose: purpose,
		},
	}
}

func TestScore(t *testing.T) {
	full := domain.FieldMetadata{
		Labels:       domain.FieldLabels{Explicit: "Email"},
		Placeholder:  "you@example.com",
		FieldPurpose: domain.PurposeEmail,
	}
	assert.InDelta(t, 1.0, Score(full), 1e-9)

	// Label only.
	assert.InDelta(t, 0.4, Score(domain.FieldMetadata{
		Labels:       domain.FieldLabels{Aria: "Phone"},
		FieldPurpose: domain.PurposeUnknown,
	}), 1e-9)

	// Nothing usable.
	assert.InDelta(t, 0.0, Score(domain.FieldMetadata{FieldPurpose: domain.PurposeUnknown}), 1e-9)

	// A cryptic name contributes no context.
	assert.InDelta(t, 0.0, Score(domain.FieldMetadata{
		Name:         "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6",
		FieldPurpose: domain.PurposeUnknown,
	}), 1e-9)
}

func TestQualityFilter_Threshold(t *testing.T) {
	forms := []*DetectedForm{{
		Opid: "__form__0",
		Fields: []*DetectedField{
			labeledField("__0", "Email", domain.PurposeEmail),
			// Purpose known but no label, no context: 0.3 survives the
			// strict-less-than threshold.
			{Opid: "__1", Metadata: domain.FieldMetadata{FieldPurpose: domain.PurposePhone}},
		},
	}}

	out, stats := NewQualityFilter(nil).Apply(forms)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Fields, 2)
	assert.Equal(t, 2, stats.Kept)
	assert.Equal(t, 0, stats.NoQuality)
}

func TestQualityFilter_UnknownUnlabeledIsDistinct(t *testing.T) {
	forms := []*DetectedForm{{
		Opid: "__form__0",
		Fields: []*DetectedField{
			{Opid: "__0", Metadata: domain.FieldMetadata{FieldPurpose: domain.PurposeUnknown}},
		},
	}}

	out, stats := NewQualityFilter(nil).Apply(forms)
	assert.Empty(t, out, "a form left without fields is dropped")
	assert.Equal(t, 1, stats.UnknownUnlabeled)
	assert.Equal(t, 0, stats.NoQuality, "counted on its own path, not as a low score")
	assert.Equal(t, 0, stats.Kept)
}

func TestQualityFilter_DuplicateLabels(t *testing.T) {
	forms := []*DetectedForm{{
		Opid: "__form__0",
		Fields: []*DetectedField{
			labeledField("__0", "Email", domain.PurposeEmail),
			labeledField("__1", "  email  ", domain.PurposeEmail),
			labeledField("__2", "Phone", domain.PurposePhone),
		},
	}}

	out, stats := NewQualityFilter(nil).Apply(forms)
	require.Len(t, out, 1)
	require.Len(t, out[0].Fields, 2)
	assert.Equal(t, "__0", out[0].Fields[0].Opid, "first occurrence wins")
	assert.Equal(t, "__2", out[0].Fields[1].Opid)
	assert.Equal(t, 1, stats.DuplicateLabel)
}

func TestQualityFilter_DedupSpansForms(t *testing.T) {
	forms := []*DetectedForm{
		{Opid: "__form__0", Fields: []*DetectedField{labeledField("__0", "Email", domain.PurposeEmail)}},
		{Opid: "__form__1", Fields: []*DetectedField{labeledField("__1", "Email", domain.PurposeEmail)}},
	}

	out, stats := NewQualityFilter(nil).Apply(forms)
	require.Len(t, out, 1)
	assert.Equal(t, "__form__0", out[0].Opid)
	assert.Equal(t, 1, stats.DuplicateLabel)
}

func TestQualityFilter_DoesNotMutateInput(t *testing.T) {
	form := &DetectedForm{
		Opid: "__form__0",
		Fields: []*DetectedField{
			labeledField("__0", "Email", domain.PurposeEmail),
			{Opid: "__1", Metadata: domain.FieldMetadata{FieldPurpose: domain.PurposeUnknown}},
		},
	}

	out, _ := NewQualityFilter(nil).Apply([]*DetectedForm{form})
	require.Len(t, out, 1)
	assert.Len(t, form.Fields, 2, "caller's form keeps its full field list")
	assert.Len(t, out[0].Fields, 1)
}
