// Package resume orchestrates translations: result caching, the translator
// itself and persistence of translation history.
package resume

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/next-chapter/resume-engine/internal/cache"
	"github.com/next-chapter/resume-engine/internal/metrics"
	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/storage"
	"github.com/next-chapter/resume-engine/internal/translator"
)

// Common errors
var (
	ErrTranslationNotFound = errors.New("translation not found")
	ErrSportNotFound       = errors.New("sport not found")
	ErrInvalidInput        = errors.New("invalid input")
)

// History page sizes
const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// Column widths of the translations table
const (
	MaxSportLength     = 100
	MaxAthleteIDLength = 255
)

// Service defines the résumé translation operations exposed to transports
type Service interface {
	Translate(ctx context.Context, in models.AthleteInput) (*models.TranslationRecord, error)
	Preview(in models.AthleteInput) (models.TranslationResult, error)
	GetTranslation(ctx context.Context, id string) (*models.TranslationRecord, error)
	ListTranslations(ctx context.Context, filters models.ListFilters) ([]*models.TranslationRecord, error)
	DeleteTranslation(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
	Sports() []models.Sport
	Sport(key string) (models.Sport, error)
	CatalogVersion() string
	Ping(ctx context.Context) error
	Close() error
}

// Engine implements Service
type Engine struct {
	translator *translator.Translator
	repo       storage.Repository
	cache      cache.Cache
	recorder   *metrics.Recorder
	now        func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCache sets the result cache; the default caches nothing
func WithCache(c cache.Cache) EngineOption {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithClock overrides the time source used to stamp records
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new Engine
func NewEngine(tr *translator.Translator, repo storage.Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		translator: tr,
		repo:       repo,
		cache:      cache.Noop{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate rejects input the translator would silently paper over
func Validate(in models.AthleteInput) error {
	sport := models.NormalizeSportKey(in.Sport)
	if sport == "" {
		return fmt.Errorf("%w: sport is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(sport) > MaxSportLength {
		return fmt.Errorf("%w: sport must be at most %d characters", ErrInvalidInput, MaxSportLength)
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.AthleteID)) > MaxAthleteIDLength {
		return fmt.Errorf("%w: athleteId must be at most %d characters", ErrInvalidInput, MaxAthleteIDLength)
	}
	if in.YearsPlayed < 0 {
		return fmt.Errorf("%w: yearsPlayed must not be negative", ErrInvalidInput)
	}
	return nil
}

// Translate produces and records a translation, serving it from cache when possible.
// Cache and persistence failures are logged and never fail the call.
func (e *Engine) Translate(ctx context.Context, in models.AthleteInput) (*models.TranslationRecord, error) {
	if err := Validate(in); err != nil {
		return nil, err
	}

	start := time.Now()
	in = in.Normalized()
	key := cache.Key(e.translator.Version(), in)

	result, hit := e.lookup(ctx, key)
	if !hit {
		fresh := e.translator.Translate(in)
		result = &fresh

		if err := e.cache.Set(ctx, key, fresh); err != nil {
			slog.Warn("failed to cache translation", "sport", in.Sport, "error", err)
		}
	}

	rec := &models.TranslationRecord{
		ID:        uuid.New().String(),
		AthleteID: in.AthleteID,
		Sport:     in.Sport,
		Input:     in,
		Result:    *result,
		CacheHit:  hit,
		CreatedAt: e.now().UTC(),
	}

	if err := e.repo.CreateTranslation(ctx, rec); err != nil {
		e.recorder.RecordStorageError("create_translation")
		slog.Error("failed to persist translation", "id", rec.ID, "sport", rec.Sport, "error", err)
	}

	source := metrics.SourceFresh
	if hit {
		source = metrics.SourceCache
	}
	e.recorder.RecordTranslation(e.sportLabel(in.Sport), source, time.Since(start))

	slog.Debug("translation served",
		"id", rec.ID,
		"sport", rec.Sport,
		"bullets", len(rec.Result.BulletPoints),
		"cache_hit", hit,
	)

	return rec, nil
}

func (e *Engine) lookup(ctx context.Context, key string) (*models.TranslationResult, bool) {
	result, ok, err := e.cache.Get(ctx, key)
	switch {
	case err != nil:
		e.recorder.RecordCacheLookup(metrics.OutcomeError)
		slog.Warn("translation cache lookup failed", "error", err)
		return nil, false
	case ok:
		e.recorder.RecordCacheLookup(metrics.OutcomeHit)
		return result, true
	default:
		e.recorder.RecordCacheLookup(metrics.OutcomeMiss)
		return nil, false
	}
}

// sportLabel keeps metric labels to catalog keys; anything else is "other"
func (e *Engine) sportLabel(sport string) string {
	if _, ok := e.translator.Sport(sport); ok {
		return models.NormalizeSportKey(sport)
	}
	return metrics.SportOther
}

// Preview translates without caching or recording history
func (e *Engine) Preview(in models.AthleteInput) (models.TranslationResult, error) {
	if err := Validate(in); err != nil {
		return models.TranslationResult{}, err
	}

	start := time.Now()
	result := e.translator.Translate(in)
	e.recorder.RecordTranslation(e.sportLabel(in.Sport), metrics.SourcePreview, time.Since(start))

	return result, nil
}

// GetTranslation retrieves a translation record by ID
func (e *Engine) GetTranslation(ctx context.Context, id string) (*models.TranslationRecord, error) {
	rec, err := e.repo.GetTranslation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrTranslationNotFound
		}
		return nil, fmt.Errorf("failed to get translation: %w", err)
	}
	return rec, nil
}

// ListTranslations returns translation history, newest first
func (e *Engine) ListTranslations(ctx context.Context, filters models.ListFilters) ([]*models.TranslationRecord, error) {
	if filters.Limit < 0 || filters.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidInput)
	}
	switch {
	case filters.Limit == 0:
		filters.Limit = DefaultListLimit
	case filters.Limit > MaxListLimit:
		filters.Limit = MaxListLimit
	}

	records, err := e.repo.ListTranslations(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	return records, nil
}

// DeleteTranslation removes a translation record
func (e *Engine) DeleteTranslation(ctx context.Context, id string) error {
	if err := e.repo.DeleteTranslation(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTranslationNotFound
		}
		return fmt.Errorf("failed to delete translation: %w", err)
	}

	slog.Info("translation deleted", "id", id)
	return nil
}

// PurgeExpired deletes records older than retention
func (e *Engine) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("%w: retention must be positive", ErrInvalidInput)
	}

	cutoff := e.now().Add(-retention)
	n, err := e.repo.DeleteTranslationsBefore(ctx, cutoff)
	if err != nil {
		e.recorder.RecordStorageError("purge_translations")
		return 0, fmt.Errorf("failed to purge translations: %w", err)
	}
	return n, nil
}

// Sports lists the catalog the engine translates with
func (e *Engine) Sports() []models.Sport {
	return e.translator.Sports()
}

// Sport looks up a single catalog entry
func (e *Engine) Sport(key string) (models.Sport, error) {
	sport, ok := e.translator.Sport(key)
	if !ok {
		return models.Sport{}, ErrSportNotFound
	}
	return sport, nil
}

// CatalogVersion returns the content hash of the active catalog
func (e *Engine) CatalogVersion() string {
	return e.translator.Version()
}

// Ping checks the repository and cache
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := e.cache.Ping(ctx); err != nil {
		return fmt.Errorf("cache ping failed: %w", err)
	}
	return nil
}

// Close releases the repository and cache
func (e *Engine) Close() error {
	return errors.Join(e.cache.Close(), e.repo.Close())
}
