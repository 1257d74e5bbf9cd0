package qubo

import (
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/shopspring/decimal"
)

func bets(costs []float64, scores []float64) []domain.CandidateBet {
	out := make([]domain.CandidateBet, len(costs))
	for i := range costs {
		out[i] = domain.CandidateBet{
			Size:  15,
			Cost:  decimal.NewFromFloat(costs[i]),
			Score: scores[i],
		}
	}
	return out
}

func closeTo(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= 1e-9*scale
}

func TestFormulateCoefficients(t *testing.T) {
	p, err := Formulate(100, bets([]float64{3, 48}, []float64{2.5, 3.0}), DefaultLambda)
	if err != nil {
		t.Fatal(err)
	}
	wantDiag0 := -2.5 + 50*(9-2*100*3)
	wantDiag1 := -3.0 + 50*(48*48-2*100*48)
	wantOff := 50 * 2 * 3.0 * 48
	if p.Matrix[0][0] != wantDiag0 || p.Matrix[1][1] != wantDiag1 {
		t.Fatalf("diagonal = %v, %v; want %v, %v", p.Matrix[0][0], p.Matrix[1][1], wantDiag0, wantDiag1)
	}
	if p.Matrix[0][1] != wantOff {
		t.Fatalf("Q[0][1] = %v, want %v", p.Matrix[0][1], wantOff)
	}
	if p.Matrix[1][0] != 0 {
		t.Fatalf("lower triangle populated: %v", p.Matrix[1][0])
	}
}

func TestFormulateEmpty(t *testing.T) {
	if _, err := Formulate(100, nil, DefaultLambda); !errors.Is(err, domain.ErrEmptyCandidatePool) {
		t.Fatalf("expected ErrEmptyCandidatePool, got %v", err)
	}
}

func TestFormulateIdempotent(t *testing.T) {
	c := bets([]float64{3, 3, 48, 408}, []float64{2.1, 2.7, 3.3, 1.9})
	a, _ := Formulate(300, c, DefaultLambda)
	b, _ := Formulate(300, c, DefaultLambda)
	if !reflect.DeepEqual(a.Matrix, b.Matrix) {
		t.Fatal("repeat formulation differs")
	}
}

func TestIsingRoundTrip(t *testing.T) {
	c := bets([]float64{3, 3, 48, 48, 3}, []float64{2.1, 2.7, 3.3, 1.9, 0.4})
	p, _ := Formulate(100, c, DefaultLambda)
	back := FromIsing(ToIsing(p))
	for i := range p.Matrix {
		for j := range p.Matrix[i] {
			if !closeTo(back[i][j], p.Matrix[i][j]) {
				t.Fatalf("Q'[%d][%d] = %v, want %v", i, j, back[i][j], p.Matrix[i][j])
			}
		}
	}
}

func TestIsingEnergyMatchesQUBO(t *testing.T) {
	c := bets([]float64{3, 48, 3, 408, 3, 48}, []float64{2, 3, 1, 2.5, 3.8, 0.9})
	p, _ := Formulate(300, c, 1.5)
	ising := ToIsing(p)

	n := p.Size()
	for mask := 0; mask < 1<<n; mask++ {
		x := make([]bool, n)
		for i := range x {
			x[i] = mask&(1<<i) != 0
		}
		q := p.Evaluate(x)
		e := ising.Offset + ising.Energy(domain.SpinsFromBits(x))
		if !closeTo(q, e) {
			t.Fatalf("mask %b: QUBO %v != Ising %v", mask, q, e)
		}
	}
}

func TestIsingSparse(t *testing.T) {
	p := domain.QUBOProblem{Matrix: [][]float64{
		{1, 0, 2},
		{0, -3, 0},
		{0, 0, 4},
	}}
	ising := ToIsing(p)
	if len(ising.J) != 1 {
		t.Fatalf("J has %d entries, want 1", len(ising.J))
	}
	if ising.J[domain.Pair{I: 0, J: 2}] != 0.5 {
		t.Fatalf("J[0,2] = %v", ising.J[domain.Pair{I: 0, J: 2}])
	}
	wantH := []float64{-0.5 - 0.5, 1.5, -2 - 0.5}
	for i, h := range wantH {
		if ising.H[i] != h {
			t.Fatalf("h[%d] = %v, want %v", i, ising.H[i], h)
		}
	}
	if ising.Offset != 1.5 {
		t.Fatalf("offset = %v, want 1.5", ising.Offset)
	}
}

func TestIsingRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	n := 12
	q := make([][]float64, n)
	for i := range q {
		q[i] = make([]float64, n)
		for j := i; j < n; j++ {
			if rng.IntN(3) == 0 {
				continue
			}
			q[i][j] = rng.Float64()*200 - 100
		}
	}
	back := FromIsing(ToIsing(domain.QUBOProblem{Matrix: q}))
	for i := range q {
		for j := range q[i] {
			if !closeTo(back[i][j], q[i][j]) {
				t.Fatalf("Q'[%d][%d] = %v, want %v", i, j, back[i][j], q[i][j])
			}
		}
	}
}
