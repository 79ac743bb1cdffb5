package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-chapter/resume-engine/internal/models"
)

func record(id, athlete, sport string, created time.Time) *models.TranslationRecord {
	return &models.TranslationRecord{
		ID:        id,
		AthleteID: athlete,
		Sport:     sport,
		Input:     models.AthleteInput{Sport: sport, Leadership: []string{"Captain"}},
		Result:    models.TranslationResult{Summary: "s", BulletPoints: []string{"a", "b"}},
		CreatedAt: created,
	}
}

func TestMemoryTranslationsCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	rec := record("t1", "ath-1", "football", now)
	require.NoError(t, repo.CreateTranslation(ctx, rec))

	got, err := repo.GetTranslation(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, rec.Result, got.Result)

	// stored values are copies
	got.Result.BulletPoints[0] = "changed"
	rec.Input.Leadership[0] = "changed"
	again, err := repo.GetTranslation(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Result.BulletPoints[0])
	assert.Equal(t, "Captain", again.Input.Leadership[0])

	require.NoError(t, repo.DeleteTranslation(ctx, "t1"))
	_, err = repo.GetTranslation(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteTranslation(ctx, "t1"), ErrNotFound)
}

func TestMemoryListTranslations(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		sport := "soccer"
		if i%2 == 0 {
			sport = "tennis"
		}
		require.NoError(t, repo.CreateTranslation(ctx,
			record(fmt.Sprintf("t%d", i), fmt.Sprintf("ath-%d", i%2), sport, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := repo.ListTranslations(ctx, models.ListFilters{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "t4", all[0].ID)
	assert.Equal(t, "t0", all[4].ID)

	tennis, err := repo.ListTranslations(ctx, models.ListFilters{Sport: " Tennis "})
	require.NoError(t, err)
	assert.Len(t, tennis, 3)

	athlete, err := repo.ListTranslations(ctx, models.ListFilters{AthleteID: "ath-1"})
	require.NoError(t, err)
	assert.Len(t, athlete, 2)

	page, err := repo.ListTranslations(ctx, models.ListFilters{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "t3", page[0].ID)
	assert.Equal(t, "t2", page[1].ID)

	empty, err := repo.ListTranslations(ctx, models.ListFilters{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryDeleteTranslationsBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	now := time.Now()

	require.NoError(t, repo.CreateTranslation(ctx, record("old", "", "golf", now.Add(-48*time.Hour))))
	require.NoError(t, repo.CreateTranslation(ctx, record("new", "", "golf", now)))

	n, err := repo.DeleteTranslationsBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetTranslation(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.GetTranslation(ctx, "new")
	assert.NoError(t, err)
}

func TestMemoryClients(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	missing, err := repo.GetClientByApiKey(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	created := time.Now().Add(-time.Hour)
	require.NoError(t, repo.UpsertClient(ctx, &models.ApiClient{
		ID:          "c1",
		Name:        "marketplace",
		ApiKey:      "nc_key_0123456789",
		IsActive:    true,
		CreatedAt:   created,
		Permissions: []string{models.PermTranslationsWrite},
	}))

	require.NoError(t, repo.UpdateClientLastUsed(ctx, "nc_key_0123456789"))

	// a second upsert keeps identity and usage
	require.NoError(t, repo.UpsertClient(ctx, &models.ApiClient{
		ID:          "c2",
		Name:        "marketplace v2",
		ApiKey:      "nc_key_0123456789",
		IsActive:    true,
		CreatedAt:   time.Now(),
		Permissions: []string{"*"},
	}))

	client, err := repo.GetClientByApiKey(ctx, "nc_key_0123456789")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "c1", client.ID)
	assert.Equal(t, "marketplace v2", client.Name)
	assert.True(t, client.CreatedAt.Equal(created))
	assert.NotNil(t, client.LastUsedAt)
	assert.True(t, client.HasPermission(models.PermSportsRead))
}
