// Package portfolio maps solver output back to concrete bets and renders the
// result for operators.
package portfolio

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/shopspring/decimal"
)

// Select decodes an MSB-first bitstring over candidates. The string is
// reversed so that bit i refers to candidates[i]. An all-zero string yields
// an empty selection.
func Select(bitstring string, candidates []domain.CandidateBet) (domain.PortfolioSelection, error) {
	if len(bitstring) != len(candidates) {
		return domain.PortfolioSelection{}, fmt.Errorf("portfolio: select: %w: length %d, want %d",
			domain.ErrInvalidBitstring, len(bitstring), len(candidates))
	}

	sel := domain.PortfolioSelection{
		CountsBySize: make(map[int]int),
		TotalCost:    decimal.Zero,
	}
	n := len(bitstring)
	for i := 0; i < n; i++ {
		switch bitstring[n-1-i] {
		case '0':
			continue
		case '1':
		default:
			return domain.PortfolioSelection{}, fmt.Errorf("portfolio: select: %w: character %q at %d",
				domain.ErrInvalidBitstring, bitstring[n-1-i], n-1-i)
		}
		bet := candidates[i]
		bet.Combination = bet.Sorted()
		sel.Indices = append(sel.Indices, i)
		sel.Bets = append(sel.Bets, bet)
		sel.CountsBySize[bet.Size]++
		sel.TotalCost = sel.TotalCost.Add(bet.Cost)
		sel.TotalScore += bet.Score
	}
	return sel, nil
}

// DisplayEnergy returns the objective value to report. Solvers that return
// the bare eigenvalue need the Ising offset added back.
func DisplayEnergy(res domain.SolveResult, offset float64) float64 {
	if res.IncludesOffset {
		return res.Energy
	}
	return res.Energy + offset
}

// Render writes a plain-text summary of one budget run to w.
func Render(w io.Writer, currency string, run domain.PortfolioRun) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Recommended portfolio (%s)\n", orDash(run.Solver))
	fmt.Fprintf(&b, "Budget: %s%.2f\n", currency, run.Budget)

	if run.Status == domain.RunStatusFailed {
		fmt.Fprintf(&b, "  No portfolio for this budget: %s\n", run.Error)
		_, err := io.WriteString(w, b.String())
		return err
	}

	sel := run.Selection
	if sel.Empty() {
		b.WriteString("  No bets selected.\n")
	} else {
		sizes := make([]int, 0, len(sel.CountsBySize))
		for size := range sel.CountsBySize {
			sizes = append(sizes, size)
		}
		slices.Sort(sizes)
		parts := make([]string, 0, len(sizes))
		for _, size := range sizes {
			count := sel.CountsBySize[size]
			noun := "bet"
			if count > 1 {
				noun = "bets"
			}
			parts = append(parts, fmt.Sprintf("%d %s of %d numbers", count, noun, size))
		}
		fmt.Fprintf(&b, "  Play %s (total cost: %s%s, total score: %.4f).\n",
			strings.Join(parts, " and "), currency, sel.TotalCost.StringFixed(2), sel.TotalScore)

		b.WriteString("\n  Bets:\n")
		for i, bet := range sel.Bets {
			fmt.Fprintf(&b, "  %d. (%d numbers) [%s] cost %s%s, score %.4f\n",
				i+1, bet.Size, FormatNumbers(bet.Combination), currency, bet.Cost.StringFixed(2), bet.Score)
		}
	}
	fmt.Fprintf(&b, "  Final energy: %.4f\n", run.DisplayEnergy)
	_, err := io.WriteString(w, b.String())
	return err
}

// FormatNumbers joins numbers as zero-padded two-digit values.
func FormatNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%02d", n)
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
