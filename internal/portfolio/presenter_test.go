package portfolio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/shopspring/decimal"
)

func threeCandidates() []domain.CandidateBet {
	return []domain.CandidateBet{
		{Combination: []int{15, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}, Size: 15, Cost: decimal.NewFromInt(3), Score: 2.1},
		{Combination: []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22, 24, 1, 3, 5}, Size: 15, Cost: decimal.NewFromInt(3), Score: 1.5},
		{Combination: []int{25, 24, 23, 22, 21, 20, 19, 18, 17, 16, 15, 14, 13, 12, 11, 10}, Size: 16, Cost: decimal.NewFromInt(48), Score: 3.0},
	}
}

func TestSelectReversesBitstring(t *testing.T) {
	sel, err := Select("100", threeCandidates())
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Indices) != 1 || sel.Indices[0] != 2 {
		t.Fatalf("indices = %v, want [2]", sel.Indices)
	}
	if sel.CountsBySize[16] != 1 {
		t.Fatalf("counts = %v", sel.CountsBySize)
	}
	if !sel.TotalCost.Equal(decimal.NewFromInt(48)) {
		t.Fatalf("total cost = %s", sel.TotalCost)
	}
	if sel.Bets[0].Combination[0] != 10 {
		t.Fatalf("combination not sorted: %v", sel.Bets[0].Combination)
	}
}

func TestSelectMultiple(t *testing.T) {
	sel, err := Select("011", threeCandidates())
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.Indices) != 2 || sel.Indices[0] != 0 || sel.Indices[1] != 1 {
		t.Fatalf("indices = %v, want [0 1]", sel.Indices)
	}
	if sel.CountsBySize[15] != 2 {
		t.Fatalf("counts = %v", sel.CountsBySize)
	}
	if sel.TotalScore != 2.1+1.5 {
		t.Fatalf("total score = %v", sel.TotalScore)
	}
}

func TestSelectEmpty(t *testing.T) {
	sel, err := Select("000", threeCandidates())
	if err != nil {
		t.Fatal(err)
	}
	if !sel.Empty() || !sel.TotalCost.IsZero() {
		t.Fatalf("expected empty selection, got %+v", sel)
	}
}

func TestSelectInvalid(t *testing.T) {
	cases := map[string]string{
		"short":     "10",
		"long":      "1000",
		"bad char":  "1x0",
		"spin sign": "-11",
	}
	for name, bits := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Select(bits, threeCandidates()); !errors.Is(err, domain.ErrInvalidBitstring) {
				t.Fatalf("expected ErrInvalidBitstring, got %v", err)
			}
		})
	}
}

func TestDisplayEnergy(t *testing.T) {
	if got := DisplayEnergy(domain.SolveResult{Energy: -5}, 2); got != -3 {
		t.Fatalf("eigenvalue family: got %v, want -3", got)
	}
	if got := DisplayEnergy(domain.SolveResult{Energy: -5, IncludesOffset: true}, 2); got != -5 {
		t.Fatalf("offset family: got %v, want -5", got)
	}
}

func TestRender(t *testing.T) {
	sel, _ := Select("101", threeCandidates())
	run := domain.PortfolioRun{
		Budget:        100,
		Solver:        "exhaustive",
		Selection:     sel,
		Status:        domain.RunStatusCompleted,
		DisplayEnergy: -12.5,
	}
	var buf bytes.Buffer
	if err := Render(&buf, "R$", run); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Recommended portfolio (exhaustive)",
		"Budget: R$100.00",
		"1 bet of 15 numbers and 1 bet of 16 numbers",
		"total cost: R$51.00",
		"[01, 02, 03, 04, 05, 06, 07, 08, 09, 10, 11, 12, 13, 14, 15]",
		"Final energy: -12.5000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderFailed(t *testing.T) {
	var buf bytes.Buffer
	run := domain.PortfolioRun{Budget: 300, Status: domain.RunStatusFailed, Error: "no candidates"}
	if err := Render(&buf, "R$", run); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No portfolio for this budget: no candidates") {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}
