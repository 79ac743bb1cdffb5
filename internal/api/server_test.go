package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/next-chapter/resume-engine/internal/config"
	"github.com/next-chapter/resume-engine/internal/metrics"
	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
	"github.com/next-chapter/resume-engine/internal/storage"
	"github.com/next-chapter/resume-engine/internal/templates"
	"github.com/next-chapter/resume-engine/internal/translator"
)

const (
	fullKey     = "nc_full_access_key_01"
	readOnlyKey = "nc_read_only_key_0001"
	inactiveKey = "nc_inactive_key_00001"
)

// unreadyRepo fails health checks
type unreadyRepo struct {
	*storage.MemoryRepository
}

func (unreadyRepo) Ping(context.Context) error { return errors.New("connection refused") }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *apiError       `json:"error"`
}

type testServer struct {
	handler  http.Handler
	repo     *storage.MemoryRepository
	recorder *metrics.Recorder
}

func newTestServer(t *testing.T, authEnabled bool, opts ...Option) *testServer {
	t.Helper()

	loader := templates.NewLoader()
	require.NoError(t, loader.LoadDefaults())
	cat, err := loader.Catalog()
	require.NoError(t, err)
	tr, err := translator.New(cat)
	require.NoError(t, err)

	repo := storage.NewMemoryRepository()
	ctx := context.Background()
	for _, c := range []models.ApiClient{
		{ID: "c1", Name: "marketplace", ApiKey: fullKey, IsActive: true, Permissions: []string{"*"}},
		{ID: "c2", Name: "reporting", ApiKey: readOnlyKey, IsActive: true, Permissions: []string{models.PermTranslationsRead}},
		{ID: "c3", Name: "retired", ApiKey: inactiveKey, IsActive: false, Permissions: []string{"*"}},
	} {
		c := c
		require.NoError(t, repo.UpsertClient(ctx, &c))
	}

	rec := metrics.NewRecorder()
	svc := resume.NewEngine(tr, repo, resume.WithRecorder(rec))
	opts = append([]Option{WithRecorder(rec)}, opts...)
	srv := NewServer(config.ServerConfig{}, config.AuthConfig{Enabled: authEnabled}, svc, repo, opts...)

	return &testServer{handler: srv.Router(), repo: repo, recorder: rec}
}

func (ts *testServer) do(t *testing.T, method, path, key string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
	}

	req := httptest.NewRequest(method, path, reader)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, true)

	w, env := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "catalog_version")

	w, _ = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyReportsUnavailableDependencies(t *testing.T) {
	loader := templates.NewLoader()
	require.NoError(t, loader.LoadDefaults())
	cat, err := loader.Catalog()
	require.NoError(t, err)
	tr, err := translator.New(cat)
	require.NoError(t, err)

	repo := unreadyRepo{storage.NewMemoryRepository()}
	srv := NewServer(config.ServerConfig{}, config.AuthConfig{}, resume.NewEngine(tr, repo), repo)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name     string
		setup    func(*http.Request)
		wantCode int
		wantErr  string
	}{
		{"missing key", func(*http.Request) {}, http.StatusUnauthorized, "missing_api_key"},
		{"unknown key", func(r *http.Request) { r.Header.Set("X-API-Key", "nc_unknown_key_000001") }, http.StatusUnauthorized, "invalid_api_key"},
		{"inactive client", func(r *http.Request) { r.Header.Set("Authorization", inactiveKey) }, http.StatusUnauthorized, "client_inactive"},
		{"bearer key", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+fullKey) }, http.StatusOK, ""},
		{"raw key", func(r *http.Request) { r.Header.Set("Authorization", fullKey) }, http.StatusOK, ""},
		{"x-api-key", func(r *http.Request) { r.Header.Set("X-API-Key", fullKey) }, http.StatusOK, ""},
		{"query key outside websocket", func(r *http.Request) {
			r.URL.RawQuery = url.Values{"api_key": {fullKey}}.Encode()
		}, http.StatusUnauthorized, "missing_api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sports", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				var env envelope
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantErr, env.Error.Code)
			}
		})
	}
}

func TestPermissions(t *testing.T) {
	ts := newTestServer(t, true)

	w, env := ts.do(t, http.MethodPost, "/api/v1/translate", readOnlyKey, models.AthleteInput{Sport: "golf"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "permission_denied", env.Error.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/sports", readOnlyKey, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/translations", readOnlyKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthDisabled(t *testing.T) {
	ts := newTestServer(t, false)

	w, env := ts.do(t, http.MethodPost, "/api/v1/translate", "", models.AthleteInput{Sport: "hockey"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
}

func TestTranslateEndpoint(t *testing.T) {
	ts := newTestServer(t, true)

	w, env := ts.do(t, http.MethodPost, "/api/v1/translate", fullKey, models.AthleteInput{
		AthleteID:    "ath-1",
		Sport:        "Basketball",
		Position:     "Point Guard",
		YearsPlayed:  4,
		Leadership:   []string{"Team Captain"},
		Achievements: []string{"All-Conference"},
		GPA:          "3.8",
		Major:        "Economics",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, env.Success)

	var rec models.TranslationRecord
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "basketball", rec.Sport)
	assert.Len(t, rec.Result.BulletPoints, 7)
	assert.Contains(t, rec.Result.BulletPoints[0], "15-person organization")
	assert.Contains(t, rec.Result.Summary, "Economics")

	// the raw payload uses the camelCase wire names
	assert.Contains(t, string(env.Data), `"bulletPoints"`)

	w, env = ts.do(t, http.MethodGet, "/api/v1/translations/"+rec.ID, fullKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got models.TranslationRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, rec.Result, got.Result)

	assert.Equal(t, 1, ts.recorder.Snapshot().Translations)
}

func TestTranslateRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, true)

	tests := []struct {
		name     string
		body     interface{}
		wantCode string
	}{
		{"malformed json", `{"sport":`, "invalid_request"},
		{"wrong type", `{"sport":"golf","yearsPlayed":"four"}`, "invalid_request"},
		{"unknown field", `{"sport":"golf","years_played":3}`, "invalid_request"},
		{"missing sport", models.AthleteInput{Position: "Goalie"}, "validation_error"},
		{"negative years", models.AthleteInput{Sport: "golf", YearsPlayed: -3}, "validation_error"},
		{"sport too long", models.AthleteInput{Sport: strings.Repeat("s", 101)}, "validation_error"},
		{"athlete id too long", models.AthleteInput{Sport: "golf", AthleteID: strings.Repeat("a", 256)}, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := ts.do(t, http.MethodPost, "/api/v1/translate", fullKey, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.False(t, env.Success)
		})
	}

	list, err := ts.repo.ListTranslations(context.Background(), models.ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTranslationHistoryDefaultPage(t *testing.T) {
	ts := newTestServer(t, true)

	for i := 0; i < resume.DefaultListLimit+3; i++ {
		w, _ := ts.do(t, http.MethodPost, "/api/v1/translate", fullKey, models.AthleteInput{Sport: "rowing"})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := ts.do(t, http.MethodGet, "/api/v1/translations", fullKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, resume.DefaultListLimit, page.Total)
}

func TestTranslationHistory(t *testing.T) {
	ts := newTestServer(t, true)

	for _, sport := range []string{"golf", "tennis", "golf"} {
		w, _ := ts.do(t, http.MethodPost, "/api/v1/translate", fullKey, models.AthleteInput{AthleteID: "ath-9", Sport: sport})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w, env := ts.do(t, http.MethodGet, "/api/v1/translations?sport=golf&athlete_id=ath-9", fullKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Translations []models.TranslationRecord `json:"translations"`
		Total        int                        `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Equal(t, 2, page.Total)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/translations?limit=abc", fullKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = ts.do(t, http.MethodGet, "/api/v1/translations?offset=-1", fullKey, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := page.Translations[0].ID
	w, _ = ts.do(t, http.MethodDelete, "/api/v1/translations/"+id, fullKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = ts.do(t, http.MethodDelete, "/api/v1/translations/"+id, fullKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", env.Error.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/translations/"+id, fullKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSportsEndpoints(t *testing.T) {
	ts := newTestServer(t, true)

	w, env := ts.do(t, http.MethodGet, "/api/v1/sports", fullKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Sports         []models.Sport `json:"sports"`
		Total          int            `json:"total"`
		CatalogVersion string         `json:"catalog_version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, len(list.Sports), list.Total)
	assert.NotEmpty(t, list.CatalogVersion)

	w, env = ts.do(t, http.MethodGet, "/api/v1/sports/Football", fullKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var football models.Sport
	require.NoError(t, json.Unmarshal(env.Data, &football))
	assert.Equal(t, "85", football.TeamSize)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/sports/cross%20country", fullKey, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/v1/sports/quidditch", fullKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec, handler, shutdown, err := metrics.Setup(context.Background(), metrics.TelemetryConfig{Enabled: true})
	require.NoError(t, err)
	defer shutdown(context.Background())

	ts := newTestServer(t, true, WithRecorder(rec), WithMetricsHandler(handler))

	w, _ := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mw := httptest.NewRecorder()
	ts.handler.ServeHTTP(mw, req)
	assert.Equal(t, http.StatusOK, mw.Code)
	assert.Contains(t, mw.Body.String(), "http_requests_total")
}

func TestNoMetricsRouteWithoutHandler(t *testing.T) {
	ts := newTestServer(t, true)

	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func dialLive(t *testing.T, srv *httptest.Server, key string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/translate/live"
	if key != "" {
		u += "?api_key=" + url.QueryEscape(key)
	}
	return websocket.DefaultDialer.Dial(u, nil)
}

func TestLiveTranslate(t *testing.T) {
	ts := newTestServer(t, true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	conn, _, err := dialLive(t, srv, fullKey)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	exchange := func(msg interface{}) models.LiveMessage {
		t.Helper()
		require.NoError(t, conn.WriteJSON(msg))
		var reply models.LiveMessage
		require.NoError(t, conn.ReadJSON(&reply))
		return reply
	}

	reply := exchange(models.LiveMessage{
		Type:  "input",
		Input: &models.AthleteInput{Sport: "football", Leadership: []string{"Captain"}},
	})
	assert.Equal(t, "result", reply.Type)
	require.NotNil(t, reply.Result)
	assert.Contains(t, reply.Result.BulletPoints[0], "85-person organization")

	reply = exchange(models.LiveMessage{Type: "input", Input: &models.AthleteInput{Sport: "golf", YearsPlayed: -1}})
	assert.Equal(t, "error", reply.Type)
	assert.Contains(t, reply.Error, "yearsPlayed")

	reply = exchange(models.LiveMessage{Type: "input"})
	assert.Equal(t, "error", reply.Type)

	reply = exchange(models.LiveMessage{Type: "ping"})
	assert.Equal(t, "pong", reply.Type)

	reply = exchange(models.LiveMessage{Type: "resize"})
	assert.Equal(t, "error", reply.Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"input","input":{"sport":"golf","years_played":2}}`)))
	var strict models.LiveMessage
	require.NoError(t, conn.ReadJSON(&strict))
	assert.Equal(t, "invalid message format", strict.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var bad models.LiveMessage
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, "invalid message format", bad.Error)

	// previews never reach history
	list, err := ts.repo.ListTranslations(context.Background(), models.ListFilters{})
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.Equal(t, 1, ts.recorder.Snapshot().LiveConnections)
}

func TestLiveTranslateRequiresKey(t *testing.T) {
	ts := newTestServer(t, true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	_, resp, err := dialLive(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dialLive(t, srv, readOnlyKey)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
