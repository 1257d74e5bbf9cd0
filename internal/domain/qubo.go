package domain

import (
	"cmp"
	"slices"
)

// QUBOProblem is a quadratic binary program over candidate-selection
// variables. Only the upper triangle of Matrix (i <= j) is populated.
type QUBOProblem struct {
	Matrix     [][]float64
	Candidates []CandidateBet
	Budget     float64
	Lambda     float64
}

// Size returns the number of variables.
func (p QUBOProblem) Size() int {
	return len(p.Candidates)
}

// Evaluate returns x^T Q x for a 0/1 assignment.
func (p QUBOProblem) Evaluate(x []bool) float64 {
	var e float64
	for i := range p.Matrix {
		if !x[i] {
			continue
		}
		for j := i; j < len(p.Matrix[i]); j++ {
			if x[j] {
				e += p.Matrix[i][j]
			}
		}
	}
	return e
}

// Pair is an unordered index pair stored with I < J.
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

// NewPair orders a and b.
func NewPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{I: a, J: b}
}

// Coupling is a single quadratic Ising term.
type Coupling struct {
	Pair
	Value float64 `json:"value"`
}

// IsingProblem is the spin form of a QUBOProblem. Pairs absent from J have a
// zero coefficient.
type IsingProblem struct {
	H      []float64
	J      map[Pair]float64
	Offset float64
}

// Size returns the number of spins.
func (p IsingProblem) Size() int {
	return len(p.H)
}

// Energy returns Σ h_i z_i + Σ J_ij z_i z_j for spins in {-1,+1}, excluding
// the offset.
func (p IsingProblem) Energy(spins []int8) float64 {
	var e float64
	for i, h := range p.H {
		e += h * float64(spins[i])
	}
	for pair, v := range p.J {
		e += v * float64(spins[pair.I]) * float64(spins[pair.J])
	}
	return e
}

// Couplings returns J as a slice ordered by (I, J).
func (p IsingProblem) Couplings() []Coupling {
	out := make([]Coupling, 0, len(p.J))
	for pair, v := range p.J {
		out = append(out, Coupling{Pair: pair, Value: v})
	}
	slices.SortFunc(out, func(a, b Coupling) int {
		if c := cmp.Compare(a.I, b.I); c != 0 {
			return c
		}
		return cmp.Compare(a.J, b.J)
	})
	return out
}

// SpinsFromBits maps a 0/1 assignment to spins using x = (1 - z) / 2, so a
// selected variable has spin -1.
func SpinsFromBits(x []bool) []int8 {
	z := make([]int8, len(x))
	for i, b := range x {
		if b {
			z[i] = -1
		} else {
			z[i] = 1
		}
	}
	return z
}
