package sqlite

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/memfill/memfill/internal/domain"
)

// MemoryRepository persists memory entries in SQLite
type MemoryRepository struct {
	db *sqlx.DB
}

// NewMemoryRepository creates a new memory repository
func NewMemoryRepository(db *DB) *MemoryRepository {
	return &MemoryRepository{db: db.DB}
}

// memoryRow represents the database row structure
type memoryRow struct {
	ID           string     `db:"id"`
	Question     string     `db:"question"`
	Answer       string     `db:"answer"`
	Category     string     `db:"category"`
	Tags         []byte     `db:"tags"`
	Confidence   float64    `db:"confidence"`
	FieldPurpose string     `db:"field_purpose"`
	Source       string     `db:"source"`
	UsageCount   int        `db:"usage_count"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

func (r *memoryRow) toDomain() (*domain.MemoryEntry, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing memory id %q: %w", r.ID, err)
	}

	entry := &domain.MemoryEntry{
		ID:           id,
		Question:     r.Question,
		Answer:       r.Answer,
		Category:     domain.MemoryCategory(r.Category),
		Confidence:   r.Confidence,
		FieldPurpose: domain.FieldPurpose(r.FieldPurpose),
		Source:       domain.MemorySource(r.Source),
		UsageCount:   r.UsageCount,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		DeletedAt:    r.DeletedAt,
	}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &entry.Tags); err != nil {
			return nil, err
		}
	}
	return entry, nil
}

func tagsJSON(entry *domain.MemoryEntry) ([]byte, error) {
	tags := entry.Tags
	if tags == nil {
		tags = []string{}
	}
	return json.Marshal(tags)
}

// Create inserts a new memory entry
func (r *MemoryRepository) Create(ctx context.Context, entry *domain.MemoryEntry) error {
	tags, err := tagsJSON(entry)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO memories (
			id, question, answer, category, tags, confidence,
			field_purpose, source, usage_count, created_at, updated_at, deleted_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID.String(),
		entry.Question,
		entry.Answer,
		string(entry.Category),
		tags,
		entry.Confidence,
		string(entry.FieldPurpose),
		string(entry.Source),
		entry.UsageCount,
		entry.CreatedAt,
		entry.UpdatedAt,
		entry.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict(fmt.Sprintf("memory %s already exists", entry.ID))
		}
		return domain.ErrStorage(err)
	}
	return nil
}

// Get fetches one entry by id, tombstoned entries included
func (r *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*domain.MemoryEntry, error) {
	var row memoryRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM memories WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemoryNotFound(id.String())
	}
	if err != nil {
		return nil, domain.ErrStorage(err)
	}
	return row.toDomain()
}

// List returns all live entries, oldest first
func (r *MemoryRepository) List(ctx context.Context) ([]domain.MemoryEntry, error) {
	var rows []memoryRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM memories WHERE deleted_at IS NULL ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.ErrStorage(err)
	}

	entries := make([]domain.MemoryEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// ListByCategory returns live entries in one category, oldest first
func (r *MemoryRepository) ListByCategory(ctx context.Context, category domain.MemoryCategory) ([]domain.MemoryEntry, error) {
	var rows []memoryRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM memories WHERE deleted_at IS NULL AND category = ? ORDER BY created_at ASC`,
		string(category))
	if err != nil {
		return nil, domain.ErrStorage(err)
	}

	entries := make([]domain.MemoryEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Update rewrites a stored entry. Updating a missing id is an error.
func (r *MemoryRepository) Update(ctx context.Context, entry *domain.MemoryEntry) error {
	tags, err := tagsJSON(entry)
	if err != nil {
		return err
	}

	query := `
		UPDATE memories SET
			question = ?, answer = ?, category = ?, tags = ?, confidence = ?,
			field_purpose = ?, source = ?, usage_count = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?
	`

	res, err := r.db.ExecContext(ctx, query,
		entry.Question,
		entry.Answer,
		string(entry.Category),
		tags,
		entry.Confidence,
		string(entry.FieldPurpose),
		string(entry.Source),
		entry.UsageCount,
		entry.UpdatedAt,
		entry.DeletedAt,
		entry.ID.String(),
	)
	if err != nil {
		return domain.ErrStorage(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStorage(err)
	}
	if affected == 0 {
		return domain.ErrMemoryNotFound(entry.ID.String())
	}
	return nil
}

// Delete tombstones an entry; the row stays for sync layers to observe
func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE memories SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now, now, id.String())
	if err != nil {
		return domain.ErrStorage(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStorage(err)
	}
	if affected == 0 {
		return domain.ErrMemoryNotFound(id.String())
	}
	return nil
}

// RecordUsage increments an entry's usage counter
func (r *MemoryRepository) RecordUsage(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE memories SET usage_count = usage_count + 1, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id.String())
	if err != nil {
		return domain.ErrStorage(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ErrStorage(err)
	}
	if affected == 0 {
		return domain.ErrMemoryNotFound(id.String())
	}
	return nil
}

// csvHeader is the import/export column layout.
var csvHeader = []string{"question", "answer", "category", "tags"}

// ExportCSV writes all live entries to w
func (r *MemoryRepository) ExportCSV(ctx context.Context, w io.Writer) error {
	entries, err := r.List(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		tags, err := json.Marshal(e.Tags)
		if err != nil {
			return err
		}
		if err := cw.Write([]string{e.Question, e.Answer, string(e.Category), string(tags)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV reads entries from rd and inserts them in one transaction.
// Rows with an empty answer are skipped. Returns the number imported.
func (r *MemoryRepository) ImportCSV(ctx context.Context, rd io.Reader) (int, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return 0, domain.ErrValidation(fmt.Sprintf("malformed CSV: %v", err))
	}
	if len(records) == 0 {
		return 0, nil
	}

	// Skip a header row when present.
	if len(records[0]) > 0 && records[0][0] == csvHeader[0] {
		records = records[1:]
	}

	imported := 0
	err = (&DB{DB: r.db}).Transaction(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO memories (
				id, question, answer, category, tags, confidence,
				field_purpose, source, usage_count, created_at, updated_at, deleted_at
			)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		for _, rec := range records {
			if len(rec) < 2 || rec[1] == "" {
				continue
			}
			question := rec[0]
			answer := rec[1]
			category := domain.CategoryOther
			if len(rec) > 2 {
				category = domain.MemoryCategory(rec[2])
			}
			entry := domain.NewMemoryEntry(question, answer, category, domain.SourceImport)
			if len(rec) > 3 && rec[3] != "" && rec[3] != "null" {
				if err := json.Unmarshal([]byte(rec[3]), &entry.Tags); err != nil {
					entry.Tags = []string{rec[3]}
				}
			}
			tags, err := tagsJSON(entry)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, query,
				entry.ID.String(), entry.Question, entry.Answer, string(entry.Category),
				tags, entry.Confidence, string(entry.FieldPurpose), string(entry.Source),
				entry.UsageCount, entry.CreatedAt, entry.UpdatedAt, nil,
			); err != nil {
				return domain.ErrStorage(err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return imported, nil
}
