package storage

import (
	"context"
	"errors"
	"time"

	"github.com/next-chapter/resume-engine/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for translation history and API client persistence
type Repository interface {
	// Translations
	CreateTranslation(ctx context.Context, rec *models.TranslationRecord) error
	GetTranslation(ctx context.Context, id string) (*models.TranslationRecord, error)
	ListTranslations(ctx context.Context, filters models.ListFilters) ([]*models.TranslationRecord, error)
	DeleteTranslation(ctx context.Context, id string) error
	DeleteTranslationsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// API Clients
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpsertClient(ctx context.Context, client *models.ApiClient) error
	UpdateClientLastUsed(ctx context.Context, apiKey string) error

	// Health
	Ping(ctx context.Context) error
	Close() error
}
