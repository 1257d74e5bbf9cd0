package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestObserveAndExpose(t *testing.T) {
	m := New()
	m.ObserveRun("completed", 2*time.Second, 60, 3)
	m.ObserveSolver("anneal", 10*time.Millisecond, nil)
	m.ObserveSolver("qiskit", time.Millisecond, errors.New("unavailable"))
	m.ObserveSubsets(16)
	m.ObserveFetch(3400, nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`lotoqubo_budget_runs_total{status="completed"} 1`,
		`lotoqubo_solver_attempts_total{result="error",solver="qiskit"} 1`,
		`lotoqubo_subsets_scored_total 16`,
		`lotoqubo_draws_loaded 3400`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("failed", 0, 0, 0)
	m.ObserveSolver("x", 0, nil)
	m.ObserveSubsets(1)
	m.ObserveFetch(0, errors.New("x"))
}
