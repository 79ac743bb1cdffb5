// Package client is a Go SDK for the nextchapter résumé API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a Go SDK for the nextchapter API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new nextchapter client
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// AthleteInput is the athletic experience to translate
type AthleteInput struct {
	AthleteID    string   `json:"athleteId,omitempty"`
	Sport        string   `json:"sport"`
	Position     string   `json:"position,omitempty"`
	YearsPlayed  int      `json:"yearsPlayed,omitempty"`
	Leadership   []string `json:"leadership,omitempty"`
	Achievements []string `json:"achievements,omitempty"`
	Stats        string   `json:"stats,omitempty"`
	GPA          string   `json:"gpa,omitempty"`
	Major        string   `json:"major,omitempty"`
}

// TranslationResult is the generated résumé text
type TranslationResult struct {
	Summary      string   `json:"summary"`
	BulletPoints []string `json:"bulletPoints"`
}

// Translation is a stored translation
type Translation struct {
	ID        string            `json:"id"`
	AthleteID string            `json:"athleteId,omitempty"`
	Sport     string            `json:"sport"`
	Input     AthleteInput      `json:"input"`
	Result    TranslationResult `json:"result"`
	CacheHit  bool              `json:"cacheHit"`
	CreatedAt time.Time         `json:"createdAt"`
}

// Sport is a catalog entry
type Sport struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	TeamSize string   `json:"teamSize,omitempty"`
	Skills   []string `json:"skills"`
}

// ListOptions contains options for listing translations
type ListOptions struct {
	AthleteID string
	Sport     string
	Limit     int
	Offset    int
}

// APIError is returned when the server answers with an error envelope
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate translates input and records it in the server's history
func (c *Client) Translate(ctx context.Context, input AthleteInput) (*Translation, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return call[*Translation](ctx, c, http.MethodPost, "/api/v1/translate", bytes.NewReader(body))
}

// GetTranslation retrieves a translation by ID
func (c *Client) GetTranslation(ctx context.Context, id string) (*Translation, error) {
	return call[*Translation](ctx, c, http.MethodGet, "/api/v1/translations/"+url.PathEscape(id), nil)
}

// ListTranslations retrieves translation history, newest first
func (c *Client) ListTranslations(ctx context.Context, opts ListOptions) ([]*Translation, error) {
	q := url.Values{}
	if opts.AthleteID != "" {
		q.Set("athlete_id", opts.AthleteID)
	}
	if opts.Sport != "" {
		q.Set("sport", opts.Sport)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}

	path := "/api/v1/translations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	data, err := call[struct {
		Translations []*Translation `json:"translations"`
		Total        int            `json:"total"`
	}](ctx, c, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return data.Translations, nil
}

// DeleteTranslation removes a translation from history
func (c *Client) DeleteTranslation(ctx context.Context, id string) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodDelete, "/api/v1/translations/"+url.PathEscape(id), nil)
	return err
}

// ListSports retrieves the sport catalog and its version
func (c *Client) ListSports(ctx context.Context) ([]Sport, string, error) {
	data, err := call[struct {
		Sports         []Sport `json:"sports"`
		CatalogVersion string  `json:"catalog_version"`
	}](ctx, c, http.MethodGet, "/api/v1/sports", nil)
	if err != nil {
		return nil, "", err
	}
	return data.Sports, data.CatalogVersion, nil
}

// GetSport retrieves one catalog entry
func (c *Client) GetSport(ctx context.Context, key string) (*Sport, error) {
	return call[*Sport](ctx, c, http.MethodGet, "/api/v1/sports/"+url.PathEscape(key), nil)
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := call[json.RawMessage](ctx, c, http.MethodGet, "/health", nil)
	return err
}

// call performs a request and unwraps the response envelope
func call[T any](ctx context.Context, c *Client, method, path string, body io.Reader) (T, error) {
	var zero T

	status, resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return zero, err
	}

	var result envelope[T]
	if err := json.Unmarshal(resp, &result); err != nil {
		if status >= 400 {
			return zero, &APIError{StatusCode: status, Code: "http_error", Message: string(resp)}
		}
		return zero, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !result.Success || status >= 400 {
		apiErr := &APIError{StatusCode: status, Code: "unknown_error"}
		if result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return zero, apiErr
	}

	return result.Data, nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}
