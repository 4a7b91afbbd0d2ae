// Package handlers provides HTTP handlers for tip operations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/avramidis/tipfolio/internal/aggregate"
	"github.com/avramidis/tipfolio/internal/auth"
	"github.com/avramidis/tipfolio/internal/clients/gmail"
	"github.com/avramidis/tipfolio/internal/modules/tips"
)

// Handler handles tip HTTP requests
type Handler struct {
	repo        *tips.Repository
	coordinator *tips.Coordinator
	log         zerolog.Logger
}

// NewHandler creates a new tips handler
func NewHandler(repo *tips.Repository, coordinator *tips.Coordinator, log zerolog.Logger) *Handler {
	return &Handler{
		repo:        repo,
		coordinator: coordinator,
		log:         log.With().Str("handler", "tips").Logger(),
	}
}

type tipRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
	Note   string          `json:"note"`
}

// HandleList handles GET /api/tips and GET /api/tips?date=YYYY-MM-DD
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var (
		collection []tips.Tip
		err        error
	)
	if date := r.URL.Query().Get("date"); date != "" {
		day, parseErr := time.Parse("2006-01-02", date)
		if parseErr != nil {
			http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		collection, err = h.repo.ListByDate(day)
	} else {
		collection, err = h.repo.ListAll()
	}
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tips")
		http.Error(w, "Failed to list tips", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"tips": collection,
	}))
}

// HandleCreate handles POST /api/tips
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req tipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	tip, err := h.repo.Add(req.Amount, req.Date, req.Note)
	if err != nil {
		if errors.Is(err, tips.ErrNegativeAmount) {
			http.Error(w, "Amount must not be negative", http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Failed to store tip")
		http.Error(w, "Failed to store tip", http.StatusInternalServerError)
		return
	}

	h.triggerSync(r)
	h.writeJSON(w, http.StatusCreated, h.envelope(map[string]interface{}{
		"tip": tip,
	}))
}

// HandleUpdate handles PUT /api/tips/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	var req tipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	tip := tips.Tip{ID: id, Amount: req.Amount, Date: req.Date, Note: req.Note}
	if err := h.repo.Update(tip); err != nil {
		if errors.Is(err, tips.ErrNotFound) {
			http.Error(w, "Tip not found", http.StatusNotFound)
			return
		}
		if errors.Is(err, tips.ErrNegativeAmount) {
			http.Error(w, "Amount must not be negative", http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Str("tip_id", id).Msg("Failed to update tip")
		http.Error(w, "Failed to update tip", http.StatusInternalServerError)
		return
	}

	h.triggerSync(r)
	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"tip": tip,
	}))
}

// HandleDelete handles DELETE /api/tips/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.repo.Delete(id); err != nil {
		h.log.Error().Err(err).Str("tip_id", id).Msg("Failed to delete tip")
		http.Error(w, "Failed to delete tip", http.StatusInternalServerError)
		return
	}

	h.triggerSync(r)
	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"deleted": id,
	}))
}

// HandleSync handles POST /api/tips/sync
// Runs a synchronous mirror sync and reports its outcome.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	token, ok := auth.BearerToken(r)
	if !ok {
		http.Error(w, "Missing bearer token", http.StatusUnauthorized)
		return
	}

	if err := h.coordinator.Sync(r.Context(), token); err != nil {
		switch {
		case errors.Is(err, gmail.ErrAuthExpired):
			http.Error(w, "Session expired, please sign in again", http.StatusUnauthorized)
		case errors.Is(err, gmail.ErrRateLimited):
			http.Error(w, "Mail provider is rate limiting, try again later", http.StatusTooManyRequests)
		default:
			h.log.Error().Err(err).Msg("Sync failed")
			http.Error(w, "Sync failed", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"synced": true,
	}))
}

// HandleMonthly handles GET /api/tips/monthly?year=YYYY
func (h *Handler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	year := time.Now().UTC().Year()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1970 || parsed > 9999 {
			http.Error(w, "Invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	collection, err := h.repo.ListAll()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tips")
		http.Error(w, "Failed to list tips", http.StatusInternalServerError)
		return
	}

	records := make([]aggregate.Record, 0, len(collection))
	for _, tip := range collection {
		records = append(records, aggregate.Record{Amount: tip.Amount, Timestamp: tip.Date})
	}

	h.writeJSON(w, http.StatusOK, h.envelope(map[string]interface{}{
		"year":    year,
		"periods": aggregate.Monthly(year, records),
	}))
}

// triggerSync kicks off a background mirror sync when the caller supplied
// a credential. Mutations succeed locally either way.
func (h *Handler) triggerSync(r *http.Request) {
	if token, ok := auth.BearerToken(r); ok {
		h.coordinator.SyncAsync(token)
	}
}

func (h *Handler) envelope(data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}
