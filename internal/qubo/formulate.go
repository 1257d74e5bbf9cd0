// Package qubo turns a candidate pool into a budget-constrained quadratic
// binary program and converts it to Ising form for solvers.
package qubo

import (
	"fmt"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DefaultLambda is the budget penalty weight.
const DefaultLambda = 50.0

// Formulate builds the QUBO for selecting candidates under budget:
//
//	minimise  -Σ score_i x_i + λ (Σ cost_i x_i - budget)²
//
// with the constant budget² dropped. Only the upper triangle is written.
func Formulate(budget float64, candidates []domain.CandidateBet, lambda float64) (domain.QUBOProblem, error) {
	n := len(candidates)
	if n == 0 {
		return domain.QUBOProblem{}, fmt.Errorf("qubo: formulate for budget %.2f: %w", budget, domain.ErrEmptyCandidatePool)
	}

	costs := make([]float64, n)
	for i, c := range candidates {
		costs[i] = c.Cost.InexactFloat64()
	}

	q := make([][]float64, n)
	for i := range q {
		q[i] = make([]float64, n)
	}
	for i, c := range candidates {
		ci := costs[i]
		q[i][i] = -c.Score + lambda*(ci*ci-2*budget*ci)
		for j := i + 1; j < n; j++ {
			q[i][j] = lambda * 2 * ci * costs[j]
		}
	}

	return domain.QUBOProblem{
		Matrix:     q,
		Candidates: candidates,
		Budget:     budget,
		Lambda:     lambda,
	}, nil
}
