package solver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/qubo"
	"github.com/shopspring/decimal"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProblem(t *testing.T) (domain.QUBOProblem, domain.IsingProblem) {
	t.Helper()
	costs := []int64{3, 3, 48, 3, 48, 3, 3, 48}
	scores := []float64{2.1, 3.2, 3.0, 2.4, 2.9, 1.1, 3.6, 2.2}
	cands := make([]domain.CandidateBet, len(costs))
	for i := range costs {
		cands[i] = domain.CandidateBet{Size: 15, Cost: decimal.NewFromInt(costs[i]), Score: scores[i]}
	}
	p, err := qubo.Formulate(100, cands, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	return p, qubo.ToIsing(p)
}

// bruteForce returns the minimum x^T Q x.
func bruteForce(p domain.QUBOProblem) float64 {
	n := p.Size()
	best := math.Inf(1)
	for mask := 0; mask < 1<<n; mask++ {
		x := make([]bool, n)
		for i := range x {
			x[i] = mask&(1<<i) != 0
		}
		best = math.Min(best, p.Evaluate(x))
	}
	return best
}

func selection(bitstring string) []bool {
	spins, _ := DecodeBitstring(bitstring)
	x := make([]bool, len(spins))
	for i, z := range spins {
		x[i] = z < 0
	}
	return x
}

func TestBitstringEncoding(t *testing.T) {
	spins := []int8{1, 1, -1}
	if got := EncodeBitstring(spins); got != "100" {
		t.Fatalf("EncodeBitstring = %q, want %q", got, "100")
	}
	back, ok := DecodeBitstring("100")
	if !ok || back[2] != -1 || back[0] != 1 {
		t.Fatalf("DecodeBitstring = %v, %v", back, ok)
	}
	if _, ok := DecodeBitstring("1a0"); ok {
		t.Fatal("expected malformed bitstring")
	}
}

func TestExhaustiveFindsGroundState(t *testing.T) {
	p, ising := testProblem(t)
	res, err := NewExhaustive(0).Solve(context.Background(), ising)
	if err != nil {
		t.Fatal(err)
	}
	if !res.IncludesOffset {
		t.Fatal("exhaustive should report energy with offset")
	}
	want := bruteForce(p)
	if math.Abs(res.Energy-want) > 1e-6 {
		t.Fatalf("energy = %v, want %v", res.Energy, want)
	}
	if got := p.Evaluate(selection(res.Bitstring)); math.Abs(got-want) > 1e-6 {
		t.Fatalf("bitstring %s evaluates to %v, want %v", res.Bitstring, got, want)
	}
}

func TestExhaustiveTooLarge(t *testing.T) {
	ising := domain.IsingProblem{H: make([]float64, 5), J: map[domain.Pair]float64{}}
	if _, err := NewExhaustive(4).Solve(context.Background(), ising); !errors.Is(err, domain.ErrSolverUnavailable) {
		t.Fatalf("expected ErrSolverUnavailable, got %v", err)
	}
}

func TestAnnealerMatchesExhaustive(t *testing.T) {
	p, ising := testProblem(t)
	res, err := NewAnnealer(AnnealConfig{Sweeps: 500, Restarts: 4, Seed: 7}).Solve(context.Background(), ising)
	if err != nil {
		t.Fatal(err)
	}
	if res.IncludesOffset {
		t.Fatal("annealer reports energy without offset")
	}
	want := bruteForce(p)
	if got := res.Energy + ising.Offset; math.Abs(got-want) > 1e-6 {
		t.Fatalf("energy+offset = %v, want %v", got, want)
	}
}

func TestAnnealerCancelled(t *testing.T) {
	_, ising := testProblem(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewAnnealer(DefaultAnnealConfig()).Solve(ctx, ising); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRemoteSolve(t *testing.T) {
	_, ising := testProblem(t)
	var got solveRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/solve" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"bitstring":"01000001","energy":-42.5}`))
	}))
	defer srv.Close()

	r := NewRemote(RemoteConfig{Family: "qiskit", BaseURL: srv.URL, APIKey: "secret", Reps: 2})
	res, err := r.Solve(context.Background(), ising)
	if err != nil {
		t.Fatal(err)
	}
	if res.Solver != "qiskit" || res.Bitstring != "01000001" || res.Energy != -42.5 || res.IncludesOffset {
		t.Fatalf("unexpected result %+v", res)
	}
	if got.NumQubits != 8 || got.Reps != 2 || len(got.J) != len(ising.J) || got.Offset != ising.Offset {
		t.Fatalf("unexpected request %+v", got)
	}
}

func TestRemoteErrors(t *testing.T) {
	_, ising := testProblem(t)
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unavailable", http.StatusServiceUnavailable, `{}`, domain.ErrSolverUnavailable},
		{"server error", http.StatusInternalServerError, `boom`, domain.ErrSolverFailed},
		{"short bitstring", http.StatusOK, `{"bitstring":"01","energy":1}`, domain.ErrSolverFailed},
		{"bad chars", http.StatusOK, `{"bitstring":"0100000x","energy":1}`, domain.ErrSolverFailed},
		{"missing energy", http.StatusOK, `{"bitstring":"01000001"}`, domain.ErrSolverFailed},
		{"reported error", http.StatusOK, `{"error":"backend offline"}`, domain.ErrSolverFailed},
		{"not json", http.StatusOK, `<html>`, domain.ErrSolverFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewRemote(RemoteConfig{Family: "cirq", BaseURL: srv.URL}).Solve(context.Background(), ising)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	if _, err := NewRemote(RemoteConfig{Family: "braket"}).Solve(context.Background(), ising); !errors.Is(err, domain.ErrSolverUnavailable) {
		t.Fatalf("unconfigured endpoint: got %v", err)
	}
}

type fakeSolver struct {
	name  string
	res   domain.SolveResult
	err   error
	delay time.Duration
	calls int
}

func (f *fakeSolver) Name() string { return f.name }

func (f *fakeSolver) Solve(ctx context.Context, _ domain.IsingProblem) (domain.SolveResult, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.SolveResult{}, ctx.Err()
		}
	}
	return f.res, f.err
}

func TestChainFallsBack(t *testing.T) {
	ising := domain.IsingProblem{H: []float64{1, 2}, J: map[domain.Pair]float64{}}
	first := &fakeSolver{name: "qiskit", err: domain.ErrSolverFailed}
	slow := &fakeSolver{name: "cirq", delay: time.Second}
	third := &fakeSolver{name: "braket", res: domain.SolveResult{Bitstring: "10", Energy: -1, IncludesOffset: true}}
	never := &fakeSolver{name: "unused"}

	var attempts []string
	chain := NewChain([]domain.Solver{first, slow, third, never}, 20*time.Millisecond, discardLogger())
	chain.OnAttempt(func(name string, _ time.Duration, _ error) { attempts = append(attempts, name) })

	res, err := chain.Solve(context.Background(), ising)
	if err != nil {
		t.Fatal(err)
	}
	if res.Solver != "braket" || res.Bitstring != "10" {
		t.Fatalf("unexpected result %+v", res)
	}
	if first.calls != 1 || slow.calls != 1 || third.calls != 1 || never.calls != 0 {
		t.Fatalf("calls = %d %d %d %d", first.calls, slow.calls, third.calls, never.calls)
	}
	if len(attempts) != 3 {
		t.Fatalf("attempts = %v", attempts)
	}
}

func TestChainAllFail(t *testing.T) {
	ising := domain.IsingProblem{H: []float64{1, 2}, J: map[domain.Pair]float64{}}
	chain := NewChain([]domain.Solver{
		&fakeSolver{name: "a", err: errors.New("boom")},
		&fakeSolver{name: "b", res: domain.SolveResult{Bitstring: "1"}},
	}, 0, discardLogger())

	_, err := chain.Solve(context.Background(), ising)
	if !errors.Is(err, domain.ErrSolverUnavailable) {
		t.Fatalf("expected ErrSolverUnavailable, got %v", err)
	}
	if !errors.Is(err, domain.ErrSolverFailed) {
		t.Fatalf("expected wrong-length result to count as ErrSolverFailed, got %v", err)
	}

	if _, err := NewChain(nil, 0, discardLogger()).Solve(context.Background(), ising); !errors.Is(err, domain.ErrSolverUnavailable) {
		t.Fatalf("empty chain: got %v", err)
	}
}
