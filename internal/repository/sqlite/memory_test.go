package sqlite

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memfill/memfill/internal/domain"
)

func newTestRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMemoryRepository(db)
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := domain.NewMemoryEntry("email address", "a@b.c", domain.CategoryContact, domain.SourceManual)
	entry.Tags = []string{"work"}
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "email address", got.Question)
	assert.Equal(t, "a@b.c", got.Answer)
	assert.Equal(t, domain.CategoryContact, got.Category)
	assert.Equal(t, []string{"work"}, got.Tags)
	assert.Equal(t, domain.SourceManual, got.Source)
	assert.Nil(t, got.DeletedAt)
}

func TestMemoryRepository_DuplicateID(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := domain.NewMemoryEntry("q", "a", domain.CategoryOther, domain.SourceManual)
	require.NoError(t, repo.Create(ctx, entry))

	err := repo.Create(ctx, entry)
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrCodeConflict, appErr.Code)
}

func TestMemoryRepository_GetMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), uuid.New())
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, domain.ErrCodeNotFound, appErr.Code)
}

func TestMemoryRepository_ListExcludesTombstones(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alive := domain.NewMemoryEntry("q1", "a1", domain.CategoryPersonal, domain.SourceManual)
	dead := domain.NewMemoryEntry("q2", "a2", domain.CategoryPersonal, domain.SourceManual)
	require.NoError(t, repo.Create(ctx, alive))
	require.NoError(t, repo.Create(ctx, dead))
	require.NoError(t, repo.Delete(ctx, dead.ID))

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, alive.ID, entries[0].ID)

	// The tombstoned row is still readable directly.
	got, err := repo.Get(ctx, dead.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)
}

func TestMemoryRepository_DeleteTwice(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := domain.NewMemoryEntry("q", "a", domain.CategoryOther, domain.SourceManual)
	require.NoError(t, repo.Create(ctx, entry))
	require.NoError(t, repo.Delete(ctx, entry.ID))

	err := repo.Delete(ctx, entry.ID)
	require.Error(t, err, "second delete sees no live row")
}

func TestMemoryRepository_Update(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := domain.NewMemoryEntry("email", "old@x.com", domain.CategoryContact, domain.SourceManual)
	require.NoError(t, repo.Create(ctx, entry))

	entry.UpdateAnswer("new@x.com", 0.9)
	require.NoError(t, repo.Update(ctx, entry))

	got, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", got.Answer)
	assert.Equal(t, 1.0, got.Confidence, "confidence never decreases on update")
}

func TestMemoryRepository_UpdateMissing(t *testing.T) {
	repo := newTestRepo(t)

	ghost := domain.NewMemoryEntry("q", "a", domain.CategoryOther, domain.SourceManual)
	err := repo.Update(context.Background(), ghost)
	require.Error(t, err)
}

func TestMemoryRepository_RecordUsage(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := domain.NewMemoryEntry("q", "a", domain.CategoryOther, domain.SourceManual)
	require.NoError(t, repo.Create(ctx, entry))
	require.NoError(t, repo.RecordUsage(ctx, entry.ID))
	require.NoError(t, repo.RecordUsage(ctx, entry.ID))

	got, err := repo.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsageCount)
}

func TestMemoryRepository_ListByCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, domain.NewMemoryEntry("q1", "a1", domain.CategoryWork, domain.SourceManual)))
	require.NoError(t, repo.Create(ctx, domain.NewMemoryEntry("q2", "a2", domain.CategoryAddress, domain.SourceManual)))

	work, err := repo.ListByCategory(ctx, domain.CategoryWork)
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, "q1", work[0].Question)
}

func TestMemoryRepository_CSVRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	csvData := strings.Join([]string{
		"question,answer,category,tags",
		`email address,a@b.c,contact,"[""work""]"`,
		"first name,Ada,personal,",
		"skipped row,,other,", // empty answer
	}, "\n")

	imported, err := repo.ImportCSV(ctx, strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	entries, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.SourceImport, entries[0].Source)
	assert.Equal(t, []string{"work"}, entries[0].Tags)

	var buf bytes.Buffer
	require.NoError(t, repo.ExportCSV(ctx, &buf))
	out := buf.String()
	assert.Contains(t, out, "question,answer,category,tags")
	assert.Contains(t, out, "a@b.c")
	assert.Contains(t, out, "Ada")
}

func TestMemoryRepository_ImportCSV_Malformed(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.ImportCSV(context.Background(), strings.NewReader(`"unterminated`))
	require.Error(t, err)
}
