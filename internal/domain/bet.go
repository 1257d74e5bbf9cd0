package domain

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// Bet sizes accepted by the lottery.
const (
	MinBetSize = 15
	MaxBetSize = 20
)

// CostEntry is the price of one bet of a given size and how many 15-number
// games it covers.
type CostEntry struct {
	Cost         decimal.Decimal
	Combinations int
}

// CostTable maps bet size to its cost entry.
type CostTable map[int]CostEntry

// DefaultCostTable returns the official price list for sizes 15 to 20.
func DefaultCostTable() CostTable {
	return CostTable{
		15: {Cost: decimal.RequireFromString("3.00"), Combinations: 1},
		16: {Cost: decimal.RequireFromString("48.00"), Combinations: 16},
		17: {Cost: decimal.RequireFromString("408.00"), Combinations: 136},
		18: {Cost: decimal.RequireFromString("2448.00"), Combinations: 816},
		19: {Cost: decimal.RequireFromString("11628.00"), Combinations: 3876},
		20: {Cost: decimal.RequireFromString("46512.00"), Combinations: 15504},
	}
}

// Lookup returns the entry for size or an error when the size is not priced.
func (t CostTable) Lookup(size int) (CostEntry, error) {
	e, ok := t[size]
	if !ok {
		return CostEntry{}, fmt.Errorf("cost table: no entry for size %d", size)
	}
	return e, nil
}

// Sizes returns the priced sizes in ascending order.
func (t CostTable) Sizes() []int {
	sizes := make([]int, 0, len(t))
	for s := range t {
		sizes = append(sizes, s)
	}
	slices.Sort(sizes)
	return sizes
}

// CandidateBet is one combination considered for the portfolio.
type CandidateBet struct {
	Combination []int           `json:"combination"`
	Size        int             `json:"size"`
	Cost        decimal.Decimal `json:"cost"`
	Score       float64         `json:"score"`
}

// Sorted returns a copy of the combination in ascending order.
func (b CandidateBet) Sorted() []int {
	out := slices.Clone(b.Combination)
	slices.Sort(out)
	return out
}

// Dataset is the read-only input shared by every budget run of one process
// run: the validated draws, their frequency table and the price list.
type Dataset struct {
	Draws     []Draw
	Frequency FrequencyTable
	Costs     CostTable
}
