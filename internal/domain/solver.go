package domain

import "context"

// SolveResult is what a solver returns for one Ising problem. Bitstring is
// most-significant-bit first: character 0 belongs to variable N-1.
type SolveResult struct {
	Solver    string  `json:"solver"`
	Bitstring string  `json:"bitstring"`
	Energy    float64 `json:"energy"`
	// IncludesOffset is false for solver families that report the raw
	// eigenvalue without the constant term.
	IncludesOffset bool `json:"includes_offset"`
}

// Solver finds a low-energy spin assignment for an Ising problem.
type Solver interface {
	Name() string
	Solve(ctx context.Context, problem IsingProblem) (SolveResult, error)
}
