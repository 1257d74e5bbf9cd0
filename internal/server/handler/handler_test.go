package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/lotoqubo/internal/cache/memory"
	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/service"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeDraws struct {
	refreshErr error
	refreshed  int
}

func (f *fakeDraws) Summary(context.Context) (service.DrawSummary, error) {
	return service.DrawSummary{Count: 2, Latest: &domain.Draw{Contest: 2}}, nil
}

func (f *fakeDraws) Frequency(context.Context) (domain.FrequencyTable, int, error) {
	return domain.FrequencyTable{1: 2, 25: 1}, 2, nil
}

func (f *fakeDraws) Refresh(context.Context) (int, error) {
	f.refreshed++
	return 2, f.refreshErr
}

func (f *fakeDraws) Load(context.Context) (*domain.Dataset, error) {
	return &domain.Dataset{}, nil
}

type fakeOptimizer struct {
	budgets []float64
}

func (f *fakeOptimizer) RunAll(_ context.Context, _ *domain.Dataset, budgets []float64) ([]domain.PortfolioRun, error) {
	f.budgets = budgets
	runs := make([]domain.PortfolioRun, len(budgets))
	for i, b := range budgets {
		runs[i] = domain.PortfolioRun{Budget: b, Status: domain.RunStatusCompleted}
	}
	return runs, nil
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}, discardLogger())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body.Status != "degraded" || body.Dependencies["postgres"] != "ok" {
		t.Fatalf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	NewHealthHandler(nil, discardLogger()).HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("no checks status = %d", rec.Code)
	}
}

func TestFrequency(t *testing.T) {
	h := NewDrawHandler(&fakeDraws{}, discardLogger())
	rec := httptest.NewRecorder()
	h.Frequency(rec, httptest.NewRequest(http.MethodGet, "/api/frequency", nil))

	var body frequencyResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Draws != 2 || len(body.Frequency) != 25 {
		t.Fatalf("body = %+v", body)
	}
	if body.Frequency[0] != (numberCount{Number: 1, Count: 2}) || body.Frequency[24].Count != 1 {
		t.Errorf("frequency = %v", body.Frequency)
	}
	if len(body.Top) != 2 || body.Top[0] != 1 {
		t.Errorf("top = %v", body.Top)
	}
}

func TestRefresh(t *testing.T) {
	draws := &fakeDraws{}
	h := NewDrawHandler(draws, discardLogger())

	rec := httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/draws/refresh", nil))
	if rec.Code != http.StatusOK || draws.refreshed != 1 {
		t.Fatalf("inline refresh: code=%d refreshed=%d", rec.Code, draws.refreshed)
	}

	draws.refreshErr = domain.ErrDataSourceUnavailable
	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/draws/refresh", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("failing refresh code = %d", rec.Code)
	}

	triggered := 0
	h.WithTrigger(func() bool { triggered++; return true })
	rec = httptest.NewRecorder()
	h.Refresh(rec, httptest.NewRequest(http.MethodPost, "/api/draws/refresh", nil))
	if rec.Code != http.StatusAccepted || triggered != 1 || draws.refreshed != 2 {
		t.Fatalf("triggered refresh: code=%d triggered=%d refreshed=%d", rec.Code, triggered, draws.refreshed)
	}
}

func TestCreatePortfolio(t *testing.T) {
	opt := &fakeOptimizer{}
	h := NewPortfolioHandler(&fakeDraws{}, opt, memory.NewRunStore(10), []float64{100, 300}, discardLogger())

	cases := []struct {
		name    string
		body    string
		code    int
		budgets []float64
	}{
		{"defaults", "", http.StatusOK, []float64{100, 300}},
		{"explicit", `{"budgets":[50]}`, http.StatusOK, []float64{50}},
		{"negative", `{"budgets":[-1]}`, http.StatusBadRequest, nil},
		{"unknown field", `{"budget":5}`, http.StatusBadRequest, nil},
		{"too many", `{"budgets":[1,2,3,4,5,6,7,8,9,10,11]}`, http.StatusBadRequest, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opt.budgets = nil
			req := httptest.NewRequest(http.MethodPost, "/api/portfolio", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Create(rec, req)
			if rec.Code != tc.code {
				t.Fatalf("code = %d, body %s", rec.Code, rec.Body.String())
			}
			if tc.code != http.StatusOK {
				return
			}
			var resp createPortfolioResponse
			_ = json.NewDecoder(rec.Body).Decode(&resp)
			if len(resp.Runs) != len(tc.budgets) || len(opt.budgets) != len(tc.budgets) {
				t.Fatalf("runs = %+v", resp.Runs)
			}
		})
	}
}

func TestGetAndRecentPortfolio(t *testing.T) {
	store := memory.NewRunStore(10)
	id := "3f1c2a5e-8d4b-4e2f-9a61-7c0d5b9e2f10"
	_ = store.Create(context.Background(), domain.PortfolioRun{ID: id, Budget: 100})
	h := NewPortfolioHandler(&fakeDraws{}, &fakeOptimizer{}, store, nil, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/portfolio/recent", h.Recent)
	mux.HandleFunc("GET /api/portfolio/{id}", h.Get)

	cases := []struct {
		path string
		code int
	}{
		{"/api/portfolio/" + id, http.StatusOK},
		{"/api/portfolio/not-a-uuid", http.StatusBadRequest},
		{"/api/portfolio/00000000-0000-0000-0000-000000000000", http.StatusNotFound},
		{"/api/portfolio/recent?limit=5", http.StatusOK},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.code {
			t.Errorf("%s: code = %d, want %d", tc.path, rec.Code, tc.code)
		}
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/portfolio/recent", nil))
	var body struct {
		Runs []domain.PortfolioRun `json:"runs"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if len(body.Runs) != 1 || body.Runs[0].ID != id {
		t.Fatalf("recent = %+v", body.Runs)
	}
}
