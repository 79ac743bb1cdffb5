package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/next-chapter/resume-engine/internal/models"
)

// MemoryRepository implements Repository in process memory.
// It is used when no database is configured and in tests.
type MemoryRepository struct {
	mu           sync.RWMutex
	translations map[string]models.TranslationRecord
	clients      map[string]models.ApiClient
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		translations: make(map[string]models.TranslationRecord),
		clients:      make(map[string]models.ApiClient),
	}
}

func (r *MemoryRepository) CreateTranslation(_ context.Context, rec *models.TranslationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translations[rec.ID] = copyRecord(*rec)
	return nil
}

func (r *MemoryRepository) GetTranslation(_ context.Context, id string) (*models.TranslationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.translations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

func (r *MemoryRepository) ListTranslations(_ context.Context, filters models.ListFilters) ([]*models.TranslationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sport := models.NormalizeSportKey(filters.Sport)
	matched := make([]*models.TranslationRecord, 0)
	for _, rec := range r.translations {
		if filters.AthleteID != "" && rec.AthleteID != filters.AthleteID {
			continue
		}
		if sport != "" && rec.Sport != sport {
			continue
		}
		out := copyRecord(rec)
		matched = append(matched, &out)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return []*models.TranslationRecord{}, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(matched) {
		matched = matched[:filters.Limit]
	}

	return matched, nil
}

func (r *MemoryRepository) DeleteTranslation(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.translations[id]; !ok {
		return ErrNotFound
	}
	delete(r.translations, id)
	return nil
}

func (r *MemoryRepository) DeleteTranslationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.translations {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.translations, id)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) GetClientByApiKey(_ context.Context, apiKey string) (*models.ApiClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[apiKey]
	if !ok {
		return nil, nil
	}
	client.Permissions = append([]string(nil), client.Permissions...)
	return &client, nil
}

func (r *MemoryRepository) UpsertClient(_ context.Context, client *models.ApiClient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *client
	c.Permissions = append([]string(nil), client.Permissions...)
	if existing, ok := r.clients[c.ApiKey]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
		c.LastUsedAt = existing.LastUsedAt
	}
	r.clients[c.ApiKey] = c
	return nil
}

func (r *MemoryRepository) UpdateClientLastUsed(_ context.Context, apiKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[apiKey]; ok {
		now := time.Now()
		c.LastUsedAt = &now
		r.clients[apiKey] = c
	}
	return nil
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }

func (r *MemoryRepository) Close() error { return nil }

func copyRecord(rec models.TranslationRecord) models.TranslationRecord {
	rec.Input.Leadership = append([]string(nil), rec.Input.Leadership...)
	rec.Input.Achievements = append([]string(nil), rec.Input.Achievements...)
	rec.Result.BulletPoints = append([]string(nil), rec.Result.BulletPoints...)
	return rec
}
