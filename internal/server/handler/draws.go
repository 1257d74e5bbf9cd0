package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/service"
)

// DrawService is what the draw endpoints need from the service layer.
type DrawService interface {
	Summary(ctx context.Context) (service.DrawSummary, error)
	Frequency(ctx context.Context) (domain.FrequencyTable, int, error)
	Refresh(ctx context.Context) (int, error)
}

// DrawHandler serves draw history endpoints.
type DrawHandler struct {
	draws   DrawService
	trigger func() bool
	logger  *slog.Logger
}

// NewDrawHandler creates a DrawHandler.
func NewDrawHandler(draws DrawService, logger *slog.Logger) *DrawHandler {
	return &DrawHandler{draws: draws, logger: logger}
}

// WithTrigger makes refresh requests asynchronous: trigger queues a refresh
// on the scheduler and reports false if one is already pending.
func (h *DrawHandler) WithTrigger(trigger func() bool) *DrawHandler {
	h.trigger = trigger
	return h
}

// Summary returns the stored draw count and latest contest.
// GET /api/draws/summary
func (h *DrawHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.draws.Summary(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: draw summary failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load draw summary")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type numberCount struct {
	Number int `json:"number"`
	Count  int `json:"count"`
}

type frequencyResponse struct {
	Draws     int           `json:"draws"`
	Frequency []numberCount `json:"frequency"`
	Top       []int         `json:"top"`
}

// Frequency returns the count of every number 1-25 plus the 15 most
// frequent numbers.
// GET /api/frequency
func (h *DrawHandler) Frequency(w http.ResponseWriter, r *http.Request) {
	freq, draws, err := h.draws.Frequency(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: frequency failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load frequency table")
		return
	}

	resp := frequencyResponse{
		Draws:     draws,
		Frequency: make([]numberCount, 0, domain.MaxNumber),
		Top:       freq.TopNumbers(domain.DrawSize),
	}
	for n := domain.MinNumber; n <= domain.MaxNumber; n++ {
		resp.Frequency = append(resp.Frequency, numberCount{Number: n, Count: freq.Get(n)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// Refresh re-fetches the draw history, through the scheduler when one is
// attached and inline otherwise.
// POST /api/draws/refresh
func (h *DrawHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h.trigger != nil {
		queued := h.trigger()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":       "accepted",
			"queued":       queued,
			"requested_at": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	n, err := h.draws.Refresh(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: refresh failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "draw source unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "draws": n})
}
