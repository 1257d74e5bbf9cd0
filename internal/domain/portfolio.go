package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioSelection is the set of bets chosen by a solver bitstring.
type PortfolioSelection struct {
	Indices      []int           `json:"indices"`
	Bets         []CandidateBet  `json:"bets"`
	CountsBySize map[int]int     `json:"counts_by_size"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	TotalScore   float64         `json:"total_score"`
}

// Empty reports whether nothing was selected.
func (s PortfolioSelection) Empty() bool {
	return len(s.Indices) == 0
}

// RunStatus is the outcome of one budget run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// PortfolioRun records one formulate-and-solve cycle for a budget.
type PortfolioRun struct {
	ID             string             `json:"id"`
	Budget         float64            `json:"budget"`
	Lambda         float64            `json:"lambda"`
	Solver         string             `json:"solver,omitempty"`
	Bitstring      string             `json:"bitstring,omitempty"`
	Energy         float64            `json:"energy"`
	DisplayEnergy  float64            `json:"display_energy"`
	Offset         float64            `json:"offset"`
	CandidateCount int                `json:"candidate_count"`
	Selection      PortfolioSelection `json:"selection"`
	Status         RunStatus          `json:"status"`
	Error          string             `json:"error,omitempty"`
	Duration       time.Duration      `json:"duration"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Event types published on ChannelPortfolio and ChannelDraws.
const (
	EventPortfolioReady  = "portfolio_ready"
	EventPortfolioFailed = "portfolio_failed"
	EventDrawsRefreshed  = "draws_refreshed"
)

// RunEvent is the bus payload for a finished budget run.
type RunEvent struct {
	Type string       `json:"type"`
	Run  PortfolioRun `json:"run"`
}

// DrawsEvent is the bus payload after the draw history changed.
type DrawsEvent struct {
	Type   string `json:"type"`
	Count  int    `json:"count"`
	Latest int    `json:"latest"`
}
