package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// Limits on a single optimize request.
const (
	maxBudgetsPerRequest = 10
	maxBudget            = 100000
)

// DatasetLoader provides the dataset a request runs against.
type DatasetLoader interface {
	Load(ctx context.Context) (*domain.Dataset, error)
}

// Optimizer runs budgets.
type Optimizer interface {
	RunAll(ctx context.Context, ds *domain.Dataset, budgets []float64) ([]domain.PortfolioRun, error)
}

// PortfolioHandler serves portfolio endpoints.
type PortfolioHandler struct {
	loader    DatasetLoader
	optimizer Optimizer
	runs      domain.PortfolioStore
	defaults  []float64
	logger    *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler. defaults are used when a
// request names no budgets.
func NewPortfolioHandler(loader DatasetLoader, optimizer Optimizer, runs domain.PortfolioStore, defaults []float64, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		loader:    loader,
		optimizer: optimizer,
		runs:      runs,
		defaults:  defaults,
		logger:    logger,
	}
}

type createPortfolioRequest struct {
	Budgets []float64 `json:"budgets"`
}

type createPortfolioResponse struct {
	Runs []domain.PortfolioRun `json:"runs"`
}

// Create runs the requested budgets and returns one run per budget, failed
// budgets included.
// POST /api/portfolio
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	budgets := req.Budgets
	if len(budgets) == 0 {
		budgets = h.defaults
	}
	if err := validateBudgets(budgets); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := h.loader.Load(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load dataset failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load draw history")
		return
	}

	runs, err := h.optimizer.RunAll(r.Context(), ds, budgets)
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: optimize interrupted", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "optimization interrupted")
		return
	}
	writeJSON(w, http.StatusOK, createPortfolioResponse{Runs: runs})
}

// Get returns one stored run.
// GET /api/portfolio/{id}
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get run failed",
			slog.String("run_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Recent lists the latest runs, newest first.
// GET /api/portfolio/recent?limit=20
func (h *PortfolioHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 200)
	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.PortfolioRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "limit": limit})
}

func validateBudgets(budgets []float64) error {
	if len(budgets) == 0 {
		return fmt.Errorf("no budgets given")
	}
	if len(budgets) > maxBudgetsPerRequest {
		return fmt.Errorf("at most %d budgets per request", maxBudgetsPerRequest)
	}
	for _, b := range budgets {
		if !(b > 0 && b <= maxBudget) {
			return fmt.Errorf("budget %v out of range (0, %d]", b, maxBudget)
		}
	}
	return nil
}
