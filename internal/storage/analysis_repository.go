package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/tongue-service/internal/model"
)

// ErrNotFound is returned when an analysis doesn't exist in the database.
// Callers check with errors.Is(err, ErrNotFound).
var ErrNotFound = errors.New("analysis not found")

// AnalysisRepository defines the interface for analysis persistence.
// Only the interface is exported; tests and the service can swap in fakes.
type AnalysisRepository interface {
	Create(ctx context.Context, a *model.Analysis) error
	GetByID(ctx context.Context, id string) (*model.Analysis, error)
	List(ctx context.Context, limit int) ([]model.Analysis, error)
	SetThumbnail(ctx context.Context, id string) error
	SetArchiveURL(ctx context.Context, id, url string) error
	Count(ctx context.Context) (int64, error)
	CountByProvider(ctx context.Context) (map[string]int64, error)
	AverageConfidence(ctx context.Context) (float64, error)
}

type sqliteAnalysisRepository struct {
	db *sqlx.DB
}

// NewAnalysisRepository creates a new SQLite-backed AnalysisRepository.
func NewAnalysisRepository(db *sqlx.DB) AnalysisRepository {
	return &sqliteAnalysisRepository{db: db}
}

func (r *sqliteAnalysisRepository) Create(ctx context.Context, a *model.Analysis) error {
	// NamedExecContext maps the struct's `db:` tags onto :named placeholders.
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analyses (
			id, request_id, photo_sha256, provider, model, raw_report,
			zones, diagnosis, recommendations, confidence, image_quality,
			additional_notes, has_thumbnail, archive_url
		) VALUES (
			:id, :request_id, :photo_sha256, :provider, :model, :raw_report,
			:zones, :diagnosis, :recommendations, :confidence, :image_quality,
			:additional_notes, :has_thumbnail, :archive_url
		)
	`, a)
	if err != nil {
		return fmt.Errorf("creating analysis: %w", err)
	}

	// Read back created_at so the caller's copy matches the row.
	if err := r.db.GetContext(ctx, &a.CreatedAt, "SELECT created_at FROM analyses WHERE id = ?", a.ID); err != nil {
		return fmt.Errorf("reading created_at for %s: %w", a.ID, err)
	}
	return nil
}

func (r *sqliteAnalysisRepository) GetByID(ctx context.Context, id string) (*model.Analysis, error) {
	var a model.Analysis
	err := r.db.GetContext(ctx, &a, "SELECT * FROM analyses WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting analysis %s: %w", id, err)
	}
	return &a, nil
}

// List returns the most recent analyses first.
func (r *sqliteAnalysisRepository) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	analyses := []model.Analysis{}
	err := r.db.SelectContext(ctx, &analyses,
		"SELECT * FROM analyses ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	return analyses, nil
}

func (r *sqliteAnalysisRepository) SetThumbnail(ctx context.Context, id string) error {
	return r.update(ctx, id, "UPDATE analyses SET has_thumbnail = 1 WHERE id = ?", id)
}

func (r *sqliteAnalysisRepository) SetArchiveURL(ctx context.Context, id, url string) error {
	return r.update(ctx, id, "UPDATE analyses SET archive_url = ? WHERE id = ?", url, id)
}

func (r *sqliteAnalysisRepository) update(ctx context.Context, id, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating analysis %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating analysis %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteAnalysisRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM analyses")
	return count, err
}

func (r *sqliteAnalysisRepository) CountByProvider(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Provider string `db:"provider"`
		Count    int64  `db:"count"`
	}
	err := r.db.SelectContext(ctx, &rows,
		"SELECT provider, COUNT(*) AS count FROM analyses GROUP BY provider")
	if err != nil {
		return nil, fmt.Errorf("counting analyses by provider: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Provider] = row.Count
	}
	return counts, nil
}

// AverageConfidence returns 0 when there are no analyses.
func (r *sqliteAnalysisRepository) AverageConfidence(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	if err := r.db.GetContext(ctx, &avg, "SELECT AVG(confidence) FROM analyses"); err != nil {
		return 0, fmt.Errorf("averaging confidence: %w", err)
	}
	return avg.Float64, nil
}

// LLMCallRepository handles persistence of LLM call tracking.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	CountByPhoto(ctx context.Context, photoHash string) (int64, error)
	CountFailures(ctx context.Context) (int64, error)
}

type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a new SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (photo_sha256, provider, model, success, status_code, duration_ms)
		VALUES (:photo_sha256, :provider, :model, :success, :status_code, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) CountByPhoto(ctx context.Context, photoHash string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE photo_sha256 = ?", photoHash)
	return count, err
}

func (r *sqliteLLMCallRepository) CountFailures(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls WHERE success = 0")
	return count, err
}
