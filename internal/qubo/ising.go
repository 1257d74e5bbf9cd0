package qubo

import "github.com/alanyoungcy/lotoqubo/internal/domain"

// ToIsing substitutes x_i = (1 - z_i)/2 into an upper-triangular QUBO. Zero
// off-diagonal entries produce no coupling.
func ToIsing(p domain.QUBOProblem) domain.IsingProblem {
	n := len(p.Matrix)
	out := domain.IsingProblem{
		H: make([]float64, n),
		J: make(map[domain.Pair]float64),
	}
	for i := 0; i < n; i++ {
		qii := p.Matrix[i][i]
		out.Offset += qii / 2
		out.H[i] -= qii / 2
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			qij := p.Matrix[i][j]
			if qij == 0 {
				continue
			}
			out.Offset += qij / 4
			out.H[i] -= qij / 4
			out.H[j] -= qij / 4
			out.J[domain.Pair{I: i, J: j}] = qij / 4
		}
	}
	return out
}

// FromIsing rebuilds the upper-triangular QUBO matrix from an Ising problem
// produced by ToIsing.
func FromIsing(p domain.IsingProblem) [][]float64 {
	n := len(p.H)
	q := make([][]float64, n)
	for i := range q {
		q[i] = make([]float64, n)
	}
	// h_i = -Q_ii/2 - Σ_j J_ij, so Q_ii = -2(h_i + Σ_j J_ij)
	coupled := make([]float64, n)
	for pair, v := range p.J {
		q[pair.I][pair.J] = 4 * v
		coupled[pair.I] += v
		coupled[pair.J] += v
	}
	for i := range q {
		q[i][i] = -2 * (p.H[i] + coupled[i])
	}
	return q
}
