package handlers

import (
	"net/http"

	"github.com/bigkaa/fileshare/internal/service"
)

// StatsHandler — обработчик статистики.
type StatsHandler struct {
	statsSvc *service.StatsService
}

// NewStatsHandler создаёт StatsHandler.
func NewStatsHandler(statsSvc *service.StatsService) *StatsHandler {
	return &StatsHandler{statsSvc: statsSvc}
}

// Stats обрабатывает GET /api/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	stats, opErr := h.statsSvc.Basic()
	if opErr != nil {
		opErr.Write(w)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// FileStats обрабатывает GET /api/file-stats.
func (h *StatsHandler) FileStats(w http.ResponseWriter, _ *http.Request) {
	stats, opErr := h.statsSvc.Detailed()
	if opErr != nil {
		opErr.Write(w)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
