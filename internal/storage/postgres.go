package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/next-chapter/resume-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN         string
	MaxConns    int32
	MinConns    int32
	MaxLifetime time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Pool exposes the underlying pool, used by migrations
func (r *PostgresRepository) Pool() *pgxpool.Pool {
	return r.pool
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Translations ---

const translationColumns = `id, athlete_id, sport, input, result, cache_hit, created_at`

// CreateTranslation stores a translation record
func (r *PostgresRepository) CreateTranslation(ctx context.Context, rec *models.TranslationRecord) error {
	inputJSON, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal input: %w", err)
	}

	resultJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	query := `
		INSERT INTO translations (` + translationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		nullString(rec.AthleteID),
		rec.Sport,
		inputJSON,
		resultJSON,
		rec.CacheHit,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create translation: %w", err)
	}

	return nil
}

// GetTranslation retrieves a translation record by ID
func (r *PostgresRepository) GetTranslation(ctx context.Context, id string) (*models.TranslationRecord, error) {
	query := `SELECT ` + translationColumns + ` FROM translations WHERE id = $1`

	rec, err := scanTranslation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get translation: %w", err)
	}

	return rec, nil
}

// ListTranslations returns translation records matching filters, newest first
func (r *PostgresRepository) ListTranslations(ctx context.Context, filters models.ListFilters) ([]*models.TranslationRecord, error) {
	query := `SELECT ` + translationColumns + ` FROM translations WHERE 1=1`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.AthleteID != "" {
		query += fmt.Sprintf(" AND athlete_id = $%d", argNum)
		args = append(args, filters.AthleteID)
		argNum++
	}

	if filters.Sport != "" {
		query += fmt.Sprintf(" AND sport = $%d", argNum)
		args = append(args, models.NormalizeSportKey(filters.Sport))
		argNum++
	}

	query += " ORDER BY created_at DESC, id"

	if filters.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filters.Limit)
		argNum++
	}

	if filters.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filters.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations: %w", err)
	}
	defer rows.Close()

	records := make([]*models.TranslationRecord, 0)
	for rows.Next() {
		rec, err := scanTranslation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating translations: %w", err)
	}

	return records, nil
}

// DeleteTranslation deletes a translation record by ID
func (r *PostgresRepository) DeleteTranslation(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM translations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete translation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteTranslationsBefore deletes every record created before cutoff
func (r *PostgresRepository) DeleteTranslationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM translations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge translations: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanTranslation(row pgx.Row) (*models.TranslationRecord, error) {
	var rec models.TranslationRecord
	var athleteID sql.NullString
	var inputJSON, resultJSON []byte

	err := row.Scan(
		&rec.ID,
		&athleteID,
		&rec.Sport,
		&inputJSON,
		&resultJSON,
		&rec.CacheHit,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.AthleteID = athleteID.String

	if err := json.Unmarshal(inputJSON, &rec.Input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}

	if err := json.Unmarshal(resultJSON, &rec.Result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	return &rec, nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpsertClient inserts an API client or refreshes the one holding the same key
func (r *PostgresRepository) UpsertClient(ctx context.Context, client *models.ApiClient) error {
	permissionsJSON, err := json.Marshal(client.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	metadataJSON, err := json.Marshal(client.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO api_clients (id, name, api_key, is_active, created_at, permissions, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (api_key) DO UPDATE
		SET name = EXCLUDED.name, is_active = EXCLUDED.is_active,
		    permissions = EXCLUDED.permissions, metadata = EXCLUDED.metadata
	`

	_, err = r.pool.Exec(ctx, query,
		client.ID,
		client.Name,
		client.ApiKey,
		client.IsActive,
		client.CreatedAt,
		permissionsJSON,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert api client: %w", err)
	}

	return nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

// Helper functions for nullable values

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
