package solver

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DefaultExhaustiveMaxVars keeps a full scan around a million states.
const DefaultExhaustiveMaxVars = 20

// Exhaustive finds the exact ground state by walking every spin assignment
// in Gray-code order. Reported energy includes the offset.
type Exhaustive struct {
	maxVars int
}

// NewExhaustive creates an exact solver for problems up to maxVars spins.
func NewExhaustive(maxVars int) *Exhaustive {
	if maxVars <= 0 {
		maxVars = DefaultExhaustiveMaxVars
	}
	return &Exhaustive{maxVars: maxVars}
}

// Name implements domain.Solver.
func (e *Exhaustive) Name() string { return "exhaustive" }

// Solve implements domain.Solver.
func (e *Exhaustive) Solve(ctx context.Context, p domain.IsingProblem) (domain.SolveResult, error) {
	n := p.Size()
	if n == 0 {
		return domain.SolveResult{}, fmt.Errorf("exhaustive: %w: empty problem", domain.ErrSolverFailed)
	}
	if n > e.maxVars {
		return domain.SolveResult{}, fmt.Errorf("exhaustive: %w: %d variables exceeds limit %d",
			domain.ErrSolverUnavailable, n, e.maxVars)
	}

	adj := buildAdjacency(p)
	spins := make([]int8, n)
	for i := range spins {
		spins[i] = 1
	}
	energy := p.Energy(spins)
	best := energy
	bestSpins := append([]int8(nil), spins...)

	total := uint64(1) << n
	for step := uint64(1); step < total; step++ {
		if step&0xFFFF == 0 {
			if err := ctx.Err(); err != nil {
				return domain.SolveResult{}, fmt.Errorf("exhaustive: %w", err)
			}
		}
		k := bits.TrailingZeros64(step)
		energy -= 2 * float64(spins[k]) * localField(p, adj, spins, k)
		spins[k] = -spins[k]
		if energy < best {
			best = energy
			copy(bestSpins, spins)
		}
	}

	return domain.SolveResult{
		Solver:         e.Name(),
		Bitstring:      EncodeBitstring(bestSpins),
		Energy:         best + p.Offset,
		IncludesOffset: true,
	}, nil
}
