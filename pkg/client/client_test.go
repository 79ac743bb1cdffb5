package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-chapter/resume-engine/internal/api"
	"github.com/next-chapter/resume-engine/internal/config"
	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
	"github.com/next-chapter/resume-engine/internal/storage"
	"github.com/next-chapter/resume-engine/internal/templates"
	"github.com/next-chapter/resume-engine/internal/translator"
)

const testKey = "nc_sdk_test_key_00001"

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	loader := templates.NewLoader()
	require.NoError(t, loader.LoadDefaults())
	cat, err := loader.Catalog()
	require.NoError(t, err)
	tr, err := translator.New(cat)
	require.NoError(t, err)

	repo := storage.NewMemoryRepository()
	require.NoError(t, repo.UpsertClient(context.Background(), &models.ApiClient{
		ID: "sdk", Name: "sdk", ApiKey: testKey, IsActive: true, Permissions: []string{"*"},
	}))

	srv := api.NewServer(config.ServerConfig{}, config.AuthConfig{Enabled: true}, resume.NewEngine(tr, repo), repo)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func TestClientRoundTrip(t *testing.T) {
	ts := newTestAPI(t)
	c := NewClient(ts.URL, testKey)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	tr, err := c.Translate(ctx, AthleteInput{
		AthleteID:   "ath-42",
		Sport:       "Volleyball",
		Position:    "Setter",
		YearsPlayed: 3,
		Leadership:  []string{"Team Captain"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, "volleyball", tr.Sport)
	assert.Contains(t, tr.Result.Summary, "3-year volleyball Setter")
	assert.LessOrEqual(t, len(tr.Result.BulletPoints), 7)

	got, err := c.GetTranslation(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Result, got.Result)

	list, err := c.ListTranslations(ctx, ListOptions{AthleteID: "ath-42", Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tr.ID, list[0].ID)

	require.NoError(t, c.DeleteTranslation(ctx, tr.ID))

	_, err = c.GetTranslation(ctx, tr.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "not_found", apiErr.Code)
}

func TestClientSports(t *testing.T) {
	ts := newTestAPI(t)
	c := NewClient(ts.URL, testKey)
	ctx := context.Background()

	sports, version, err := c.ListSports(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, sports)
	assert.NotEmpty(t, version)

	sport, err := c.GetSport(ctx, "soccer")
	require.NoError(t, err)
	assert.Equal(t, "30", sport.TeamSize)

	_, err = c.GetSport(ctx, "curling")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClientErrors(t *testing.T) {
	ts := newTestAPI(t)
	ctx := context.Background()

	_, err := NewClient(ts.URL, "").Translate(ctx, AthleteInput{Sport: "golf"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "missing_api_key", apiErr.Code)

	_, err = NewClient(ts.URL, testKey).Translate(ctx, AthleteInput{})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "validation_error", apiErr.Code)
}

func TestClientNonEnvelopeError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := NewClient(ts.URL, testKey).Health(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream unavailable")
}

func TestLiveSession(t *testing.T) {
	ts := newTestAPI(t)
	c := NewClient(ts.URL, testKey)

	live, err := c.Live(context.Background())
	require.NoError(t, err)
	defer live.Close()

	require.NoError(t, live.Ping())

	result, err := live.Preview(AthleteInput{Sport: "swimming", Achievements: []string{"Conference Champion"}})
	require.NoError(t, err)
	assert.Contains(t, result.BulletPoints[len(result.BulletPoints)-1], "Conference Champion")

	_, err = live.Preview(AthleteInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sport is required")
}

func TestLiveRejectsBadKey(t *testing.T) {
	ts := newTestAPI(t)

	_, err := NewClient(ts.URL, "nc_wrong_key_000000001").Live(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}
