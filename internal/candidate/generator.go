// Package candidate builds the pool of bets a budget run chooses from.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
	"github.com/alanyoungcy/lotoqubo/internal/scoring"
	"github.com/shopspring/decimal"
)

// Config holds the generator limits.
type Config struct {
	// TopHistorical is how many best-scoring past draws become 15-number bets.
	TopHistorical int
	// PoolSize is how many of the most frequent numbers larger bets are drawn from.
	PoolSize int
	// SixteenTarget is how many unique 16-number bets to sample.
	SixteenTarget int
	// AttemptMultiplier bounds sampling attempts at target*multiplier.
	AttemptMultiplier int
	// LargeTargets maps sizes 17-20 to a sample target. Sizes without an
	// entry are not generated.
	LargeTargets map[int]int
}

// DefaultConfig returns the stock limits. Sizes above 16 are disabled.
func DefaultConfig() Config {
	return Config{
		TopHistorical:     50,
		PoolSize:          20,
		SixteenTarget:     50,
		AttemptMultiplier: 10,
	}
}

// Scorer is the subset of scoring.Scorer the generator needs.
type Scorer interface {
	Score(combination []int, freq domain.FrequencyTable) (float64, scoring.Features)
	ScoreCandidate(ctx context.Context, combination []int, freq domain.FrequencyTable) (float64, error)
}

// Generator produces candidate bets for a budget.
type Generator struct {
	cfg    Config
	scorer Scorer
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator creates a Generator. The random source must be supplied so
// runs are reproducible for a fixed seed.
func NewGenerator(cfg Config, scorer Scorer, rng *rand.Rand, logger *slog.Logger) *Generator {
	return &Generator{
		cfg:    cfg,
		scorer: scorer,
		rng:    rng,
		logger: logger.With(slog.String("component", "candidate_generator")),
	}
}

// NewSeededRand returns a PCG-backed source for the given seed.
func NewSeededRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate builds the candidate pool for budget. It returns
// domain.ErrNoCandidates when nothing could be produced.
func (g *Generator) Generate(ctx context.Context, budget float64, ds *domain.Dataset) ([]domain.CandidateBet, error) {
	if math.IsNaN(budget) || math.IsInf(budget, 0) {
		return nil, fmt.Errorf("candidate: generate for budget %g: %w", budget, domain.ErrInvalidBudget)
	}
	var out []domain.CandidateBet

	historical, err := g.historical(ds)
	if err != nil {
		return nil, err
	}
	out = append(out, historical...)

	pool := ds.Frequency.TopNumbers(g.cfg.PoolSize)
	sixteen, err := g.sample(ctx, 16, g.cfg.SixteenTarget, pool, ds)
	if err != nil && !g.skipSize(ctx, 16, err) {
		return nil, err
	}
	out = append(out, sixteen...)

	budgetDec := decimal.NewFromFloat(budget)
	for size := 17; size <= domain.MaxBetSize; size++ {
		target := g.cfg.LargeTargets[size]
		if target <= 0 {
			continue
		}
		entry, ok := ds.Costs[size]
		if !ok || budgetDec.LessThan(entry.Cost) {
			continue
		}
		bets, err := g.sample(ctx, size, target, pool, ds)
		if err != nil {
			if g.skipSize(ctx, size, err) {
				continue
			}
			return nil, err
		}
		out = append(out, bets...)
	}

	g.logger.DebugContext(ctx, "candidate_generator: pool built",
		slog.Float64("budget", budget),
		slog.Int("historical", len(historical)),
		slog.Int("sixteen", len(sixteen)),
		slog.Int("total", len(out)),
	)

	if len(out) == 0 {
		return nil, fmt.Errorf("candidate: generate for budget %.2f: %w", budget, domain.ErrNoCandidates)
	}
	return out, nil
}

// skipSize reports whether a sampling error only rules out one bet size.
// Bets too large for the sub-combination cap are dropped; anything else,
// cancellation included, aborts the run.
func (g *Generator) skipSize(ctx context.Context, size int, err error) bool {
	if !errors.Is(err, domain.ErrEnumerationBudget) {
		return false
	}
	g.logger.WarnContext(ctx, "candidate_generator: skipping bet size over enumeration cap",
		slog.Int("size", size),
		slog.String("error", err.Error()),
	)
	return true
}

// historical scores every past draw and keeps the best ones. Equal scores
// keep their input order.
func (g *Generator) historical(ds *domain.Dataset) ([]domain.CandidateBet, error) {
	if len(ds.Draws) == 0 {
		return nil, nil
	}
	entry, err := ds.Costs.Lookup(domain.DrawSize)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	bets := make([]domain.CandidateBet, 0, len(ds.Draws))
	for _, d := range ds.Draws {
		score, f := g.scorer.Score(d.Numbers, ds.Frequency)
		if f.Err != nil {
			continue
		}
		bets = append(bets, domain.CandidateBet{
			Combination: slices.Clone(d.Numbers),
			Size:        domain.DrawSize,
			Cost:        entry.Cost,
			Score:       score,
		})
	}
	slices.SortStableFunc(bets, func(a, b domain.CandidateBet) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(bets) > g.cfg.TopHistorical {
		bets = bets[:g.cfg.TopHistorical]
	}
	return bets, nil
}

// sample draws unique size-number subsets of pool until target is reached or
// the attempt budget runs out. It is skipped when pool is too small.
func (g *Generator) sample(ctx context.Context, size, target int, pool []int, ds *domain.Dataset) ([]domain.CandidateBet, error) {
	if len(pool) < size || target <= 0 {
		return nil, nil
	}
	entry, err := ds.Costs.Lookup(size)
	if err != nil {
		return nil, fmt.Errorf("candidate: %w", err)
	}

	seen := make(map[string]struct{}, target)
	var bets []domain.CandidateBet
	attempts := target * g.cfg.AttemptMultiplier
	for i := 0; i < attempts && len(bets) < target; i++ {
		combo := g.pick(pool, size)
		key := comboKey(combo)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		score, err := g.scorer.ScoreCandidate(ctx, combo, ds.Frequency)
		if err != nil {
			return nil, fmt.Errorf("candidate: score %d-number bet: %w", size, err)
		}
		bets = append(bets, domain.CandidateBet{
			Combination: combo,
			Size:        size,
			Cost:        entry.Cost,
			Score:       score,
		})
	}
	return bets, nil
}

// pick returns a uniformly random size-subset of pool in ascending order.
func (g *Generator) pick(pool []int, size int) []int {
	shuffled := slices.Clone(pool)
	g.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	combo := shuffled[:size]
	slices.Sort(combo)
	return combo
}

func comboKey(combo []int) string {
	var b strings.Builder
	for i, n := range combo {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}
