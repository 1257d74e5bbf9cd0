// Package solver provides Ising solvers and the fallback chain that picks
// the first one able to answer.
package solver

import (
	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// adjacency lists the couplings touching each spin.
type adjacency [][]neighbor

type neighbor struct {
	j int
	w float64
}

func buildAdjacency(p domain.IsingProblem) adjacency {
	adj := make(adjacency, len(p.H))
	for _, c := range p.Couplings() {
		adj[c.I] = append(adj[c.I], neighbor{j: c.J, w: c.Value})
		adj[c.J] = append(adj[c.J], neighbor{j: c.I, w: c.Value})
	}
	return adj
}

// localField returns h_k + Σ_j J_kj z_j.
func localField(p domain.IsingProblem, adj adjacency, spins []int8, k int) float64 {
	f := p.H[k]
	for _, nb := range adj[k] {
		f += nb.w * float64(spins[nb.j])
	}
	return f
}

// EncodeBitstring renders spins MSB-first: character 0 is variable N-1. A
// spin of -1 means the variable is selected.
func EncodeBitstring(spins []int8) string {
	n := len(spins)
	b := make([]byte, n)
	for i, z := range spins {
		c := byte('0')
		if z < 0 {
			c = '1'
		}
		b[n-1-i] = c
	}
	return string(b)
}

// DecodeBitstring is the inverse of EncodeBitstring.
func DecodeBitstring(s string) ([]int8, bool) {
	n := len(s)
	spins := make([]int8, n)
	for i := 0; i < n; i++ {
		switch s[n-1-i] {
		case '0':
			spins[i] = 1
		case '1':
			spins[i] = -1
		default:
			return nil, false
		}
	}
	return spins, true
}
