package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// RemoteConfig describes an external QAOA service for one solver family.
type RemoteConfig struct {
	// Family names the backend, e.g. "qiskit", "cirq" or "braket".
	Family  string
	BaseURL string
	APIKey  string
	// Reps is the number of QAOA layers requested.
	Reps int
	// IncludesOffset tells whether the service adds the Ising offset to the
	// energy it returns.
	IncludesOffset bool
	Timeout        time.Duration
}

// Remote calls an external solver service over HTTP.
type Remote struct {
	cfg        RemoteConfig
	httpClient *http.Client
}

// NewRemote creates a Remote adapter.
func NewRemote(cfg RemoteConfig) *Remote {
	if cfg.Reps <= 0 {
		cfg.Reps = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Remote{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Name implements domain.Solver.
func (r *Remote) Name() string { return r.cfg.Family }

type solveRequest struct {
	Family    string            `json:"family"`
	NumQubits int               `json:"num_qubits"`
	H         []float64         `json:"h"`
	J         []domain.Coupling `json:"j"`
	Offset    float64           `json:"offset"`
	Reps      int               `json:"reps"`
}

type solveResponse struct {
	Bitstring string   `json:"bitstring"`
	Energy    *float64 `json:"energy"`
	Error     string   `json:"error,omitempty"`
}

// Solve implements domain.Solver.
func (r *Remote) Solve(ctx context.Context, p domain.IsingProblem) (domain.SolveResult, error) {
	if r.cfg.BaseURL == "" {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: no endpoint configured", r.cfg.Family, domain.ErrSolverUnavailable)
	}

	body, err := json.Marshal(solveRequest{
		Family:    r.cfg.Family,
		NumQubits: p.Size(),
		H:         p.H,
		J:         p.Couplings(),
		Offset:    p.Offset,
		Reps:      r.cfg.Reps,
	})
	if err != nil {
		return domain.SolveResult{}, fmt.Errorf("%s: marshal request: %w", r.cfg.Family, err)
	}

	url := strings.TrimRight(r.cfg.BaseURL, "/") + "/solve"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.SolveResult{}, fmt.Errorf("%s: create request: %w", r.cfg.Family, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: %v", r.cfg.Family, domain.ErrSolverUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: read response: %v", r.cfg.Family, domain.ErrSolverFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusNotImplemented:
		return domain.SolveResult{}, fmt.Errorf("%s: %w: HTTP %d", r.cfg.Family, domain.ErrSolverUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return domain.SolveResult{}, fmt.Errorf("%s: %w: HTTP %d: %s", r.cfg.Family, domain.ErrSolverFailed, resp.StatusCode, truncate(respBody, 200))
	}

	var out solveResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: decode response: %v", r.cfg.Family, domain.ErrSolverFailed, err)
	}
	if out.Error != "" {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: %s", r.cfg.Family, domain.ErrSolverFailed, out.Error)
	}
	if len(out.Bitstring) != p.Size() {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: bitstring length %d, want %d",
			r.cfg.Family, domain.ErrSolverFailed, len(out.Bitstring), p.Size())
	}
	if _, ok := DecodeBitstring(out.Bitstring); !ok {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: malformed bitstring %q", r.cfg.Family, domain.ErrSolverFailed, out.Bitstring)
	}
	if out.Energy == nil {
		return domain.SolveResult{}, fmt.Errorf("%s: %w: missing energy", r.cfg.Family, domain.ErrSolverFailed)
	}

	return domain.SolveResult{
		Solver:         r.cfg.Family,
		Bitstring:      out.Bitstring,
		Energy:         *out.Energy,
		IncludesOffset: r.cfg.IncludesOffset,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
