package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/next-chapter/resume-engine/internal/models"
	"github.com/next-chapter/resume-engine/internal/resume"
)

// maxBodyBytes bounds a translate request body
const maxBodyBytes = 64 << 10

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// decodeStrict decodes one JSON value, rejecting fields the target does not declare
func decodeStrict(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// respondServiceError maps resume errors onto HTTP statuses
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, resume.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, resume.ErrTranslationNotFound):
		respondError(w, http.StatusNotFound, "not_found", "translation not found")
	case errors.Is(err, resume.ErrSportNotFound):
		respondError(w, http.StatusNotFound, "not_found", "sport not found")
	default:
		slog.Error("failed to "+action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to "+action)
	}
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":          "healthy",
		"time":            time.Now().UTC().Format(time.RFC3339),
		"catalog_version": s.service.CatalogVersion(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// Translation handlers

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var in models.AthleteInput
	if err := decodeStrict(http.MaxBytesReader(w, r.Body, maxBodyBytes), &in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body: "+err.Error())
		return
	}

	rec, err := s.service.Translate(r.Context(), in)
	if err != nil {
		respondServiceError(w, err, "translate")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListTranslations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := models.ListFilters{
		AthleteID: q.Get("athlete_id"),
		Sport:     q.Get("sport"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		filters.Limit = limit
	}

	if offsetStr := q.Get("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, "validation_error", "offset must be a non-negative integer")
			return
		}
		filters.Offset = offset
	}

	records, err := s.service.ListTranslations(r.Context(), filters)
	if err != nil {
		respondServiceError(w, err, "list translations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"translations": records,
		"total":        len(records),
	})
}

func (s *Server) handleGetTranslation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.service.GetTranslation(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "get translation")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteTranslation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.service.DeleteTranslation(r.Context(), id); err != nil {
		respondServiceError(w, err, "delete translation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "translation deleted",
	})
}

// Sport handlers

func (s *Server) handleListSports(w http.ResponseWriter, r *http.Request) {
	sports := s.service.Sports()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sports":          sports,
		"total":           len(sports),
		"catalog_version": s.service.CatalogVersion(),
	})
}

func (s *Server) handleGetSport(w http.ResponseWriter, r *http.Request) {
	sport, err := s.service.Sport(chi.URLParam(r, "key"))
	if err != nil {
		respondServiceError(w, err, "get sport")
		return
	}

	respondJSON(w, http.StatusOK, sport)
}
