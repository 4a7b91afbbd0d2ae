package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/avramidis/tipfolio/internal/database"
)

// SystemHandlers exposes process and host diagnostics.
type SystemHandlers struct {
	log         zerolog.Logger
	startupTime time.Time
	databases   []*database.DB
}

// NewSystemHandlers creates system handlers over the given databases.
func NewSystemHandlers(log zerolog.Logger, startupTime time.Time, databases ...*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("handler", "system").Logger(),
		startupTime: startupTime,
		databases:   databases,
	}
}

// RegisterRoutes registers system routes
func (h *SystemHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/system", func(r chi.Router) {
		r.Get("/health", h.HandleHealth)
	})
}

// HandleHealth handles GET /api/system/health
// Returns host resource usage and per-database status.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	databases := make([]map[string]interface{}, 0, len(h.databases))
	for _, db := range h.databases {
		status := "ok"
		if err := db.HealthCheck(r.Context()); err != nil {
			status = "error"
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Database health check failed")
		}
		databases = append(databases, map[string]interface{}{
			"name":   db.Name(),
			"status": status,
		})
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"uptime_hours": time.Since(h.startupTime).Hours(),
			"cpu_percent":  cpuPercent,
			"ram_percent":  ramPercent,
			"databases":    databases,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode response")
	}
}

// getSystemStats calculates CPU and RAM usage percentages.
// A 100ms CPU sample keeps the endpoint responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
