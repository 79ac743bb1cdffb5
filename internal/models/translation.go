package models

import "time"

// TranslationRecord is a persisted translation, kept for history and audit
type TranslationRecord struct {
	ID        string            `json:"id"`
	AthleteID string            `json:"athleteId,omitempty"`
	Sport     string            `json:"sport"`
	Input     AthleteInput      `json:"input"`
	Result    TranslationResult `json:"result"`
	CacheHit  bool              `json:"cacheHit"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ListFilters contains filters for listing translation records
type ListFilters struct {
	AthleteID string
	Sport     string
	Limit     int
	Offset    int
}

// LiveMessage is a websocket frame on the live preview channel
type LiveMessage struct {
	Type   string             `json:"type"`
	Input  *AthleteInput      `json:"input,omitempty"`
	Result *TranslationResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}
