package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kozaktomas/lookalike/internal/quota"
)

// QuotaReporter exposes the current daily search counter.
type QuotaReporter interface {
	Status(ctx context.Context) (*quota.Counter, error)
}

type QuotaHandler struct {
	quota  QuotaReporter
	logger *slog.Logger
}

// NewQuotaHandler creates a quota handler. q may be nil when no metered source is configured.
func NewQuotaHandler(q QuotaReporter, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{quota: q, logger: logger}
}

type quotaResponse struct {
	Enabled   bool   `json:"enabled"`
	Date      string `json:"date,omitempty"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.quota == nil {
		respondJSON(w, http.StatusOK, quotaResponse{Enabled: false})
		return
	}

	c, err := h.quota.Status(r.Context())
	if err != nil {
		h.logger.Warn("quota status unavailable", slog.String("error", err.Error()))
		respondError(w, http.StatusServiceUnavailable, "quota store unavailable")
		return
	}

	respondJSON(w, http.StatusOK, quotaResponse{
		Enabled:   true,
		Date:      c.Date,
		Count:     c.Count,
		Limit:     c.Limit,
		Remaining: c.Remaining(),
	})
}
