package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/avramidis/tipfolio/internal/auth"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/modules/earnings"
)

// StreamHandler streams monthly aggregation progress over Server-Sent Events (SSE).
type StreamHandler struct {
	service *earnings.Service
	log     zerolog.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(service *earnings.Service, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		service: service,
		log:     log.With().Str("handler", "earnings_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/earnings/monthly/stream requests (SSE).
// Emits progress events while messages are being fetched, then a final
// data event with the twelve month aggregates.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

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

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	h.log.Info().Int("year", year).Msg("Client connected to earnings stream")

	onProgress := func(current, total int) {
		h.writeEvent(w, flusher, "progress", map[string]interface{}{
			"current": current,
			"total":   total,
		})
	}

	periods, err := h.service.Monthly(r.Context(), token, year, onProgress)
	if err != nil {
		status := "error"
		message := "Failed to compute monthly earnings"
		switch {
		case errors.Is(err, gmail.ErrAuthExpired):
			status = "auth_expired"
			message = "Session expired, please sign in again"
		case errors.Is(err, gmail.ErrRateLimited):
			status = "rate_limited"
			message = "Mail provider is rate limiting, try again later"
		}
		h.log.Warn().Err(err).Int("year", year).Msg("Earnings stream aborted")
		h.writeEvent(w, flusher, "error", map[string]interface{}{
			"status":  status,
			"message": message,
		})
		return
	}

	h.writeEvent(w, flusher, "data", map[string]interface{}{
		"year":         year,
		"periods":      periods,
		"savings_goal": h.service.SavingsGoal(),
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

func (h *StreamHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("Failed to encode stream event")
		return
	}
	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}
