// Package handlers provides HTTP handlers for earnings operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/tipfolio/internal/auth"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/modules/earnings"
)

// Handler handles earnings HTTP requests
type Handler struct {
	service *earnings.Service
	log     zerolog.Logger
}

// NewHandler creates a new earnings handler
func NewHandler(service *earnings.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "earnings").Logger(),
	}
}

// HandleGetDaily handles GET /api/earnings/daily?date=YYYY-MM-DD
// Defaults to today when no date is given.
func (h *Handler) HandleGetDaily(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "Missing bearer token", http.StatusUnauthorized)
		return
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	periods, err := h.service.Daily(r.Context(), token, date, nil)
	if err != nil {
		h.writeServiceError(w, err, "Failed to compute daily earnings")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"periods":      periods,
			"savings_goal": h.service.SavingsGoal(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetMonthly handles GET /api/earnings/monthly?year=YYYY
// Defaults to the current year when no year is given.
func (h *Handler) HandleGetMonthly(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "Missing bearer token", http.StatusUnauthorized)
		return
	}

	year, err := yearParam(r)
	if err != nil {
		http.Error(w, "Invalid year", http.StatusBadRequest)
		return
	}

	periods, err := h.service.Monthly(r.Context(), token, year, nil)
	if err != nil {
		h.writeServiceError(w, err, "Failed to compute monthly earnings")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"year":         year,
			"periods":      periods,
			"savings_goal": h.service.SavingsGoal(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func yearParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1970 || year > 9999 {
		return 0, errors.New("year out of range")
	}
	return year, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, gmail.ErrAuthExpired):
		h.log.Warn().Err(err).Msg("Mail credential rejected")
		http.Error(w, "Session expired, please sign in again", http.StatusUnauthorized)
	case errors.Is(err, gmail.ErrRateLimited):
		h.log.Warn().Err(err).Msg("Mail API rate limited")
		http.Error(w, "Mail provider is rate limiting, try again later", http.StatusTooManyRequests)
	default:
		h.log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
