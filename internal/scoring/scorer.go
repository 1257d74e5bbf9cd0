package scoring

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

// DefaultMaxSubsets caps sub-combination enumeration at C(20,15), enough to
// score every bet size up to 20.
const DefaultMaxSubsets = 15504

const cancelCheckEvery = 512

// Features carries every intermediate quantity of a score.
type Features struct {
	FreqRaw         int     `json:"freq_raw"`
	FreqMaxEstimate float64 `json:"freq_max_estimate"`
	FreqNormalized  float64 `json:"freq_normalized"`
	Evens           int     `json:"evens"`
	Odds            int     `json:"odds"`
	EvenOddScore    float64 `json:"even_odd_score"`
	Sum             int     `json:"sum"`
	SumScore        float64 `json:"sum_score"`
	Primes          int     `json:"primes"`
	PrimeScore      float64 `json:"prime_score"`
	Total           float64 `json:"total"`
	// Error is non-empty when the combination was rejected.
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Weights scales each sub-score before they are summed.
type Weights struct {
	Frequency float64
	EvenOdd   float64
	Sum       float64
	Prime     float64
}

// DefaultWeights gives every sub-score the same weight.
func DefaultWeights() Weights {
	return Weights{Frequency: 1, EvenOdd: 1, Sum: 1, Prime: 1}
}

// Scorer rates combinations against a frequency table.
type Scorer struct {
	weights    Weights
	maxSubsets int
	observe    func(subsets int)
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the sub-score weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithMaxSubsets bounds how many 15-subsets ScoreCandidate may enumerate.
func WithMaxSubsets(n int) Option {
	return func(s *Scorer) {
		if n > 0 {
			s.maxSubsets = n
		}
	}
}

// WithSubsetObserver registers a callback receiving the number of subsets
// scored by each ScoreCandidate call.
func WithSubsetObserver(fn func(subsets int)) Option {
	return func(s *Scorer) { s.observe = fn }
}

// New creates a Scorer with equal weights and the default enumeration cap.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		weights:    DefaultWeights(),
		maxSubsets: DefaultMaxSubsets,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score rates a 15-number combination. Invalid input yields a zero score
// with Features.Error set; it never fails the caller.
func (s *Scorer) Score(combination []int, freq domain.FrequencyTable) (float64, Features) {
	if err := domain.ValidateCombination(combination, domain.DrawSize); err != nil {
		return 0, Features{Error: err.Error(), Err: err}
	}

	var f Features
	for _, n := range combination {
		f.FreqRaw += freq.Get(n)
		f.Sum += n
		if n%2 == 0 {
			f.Evens++
		}
		if isPrime(n) {
			f.Primes++
		}
	}
	f.Odds = domain.DrawSize - f.Evens

	f.FreqMaxEstimate = estimateMaxFrequency(freq)
	if f.FreqMaxEstimate > 0 {
		f.FreqNormalized = float64(f.FreqRaw) / f.FreqMaxEstimate
	}
	f.EvenOddScore = evenOddScore(f.Evens)
	f.SumScore = sumScore(f.Sum)
	f.PrimeScore = primeScore(f.Primes)

	f.Total = s.weights.Frequency*f.FreqNormalized +
		s.weights.EvenOdd*f.EvenOddScore +
		s.weights.Sum*f.SumScore +
		s.weights.Prime*f.PrimeScore
	return f.Total, f
}

// ScoreCandidate rates a bet of any size. Size 15 delegates to Score; larger
// bets score the mean over every 15-subset, skipping invalid subsets. Bets
// smaller than 15 score zero.
func (s *Scorer) ScoreCandidate(ctx context.Context, combination []int, freq domain.FrequencyTable) (float64, error) {
	size := len(combination)
	switch {
	case size < domain.DrawSize:
		return 0, nil
	case size == domain.DrawSize:
		score, _ := s.Score(combination, freq)
		return score, nil
	}

	total := Binomial(size, domain.DrawSize)
	if total > s.maxSubsets {
		return 0, fmt.Errorf("scoring: score candidate of size %d: %w (%d > %d)",
			size, domain.ErrEnumerationBudget, total, s.maxSubsets)
	}

	var (
		sum   float64
		valid int
		seen  int
	)
	sub := make([]int, domain.DrawSize)
	err := Combinations(size, domain.DrawSize, func(idx []int) bool {
		seen++
		if seen%cancelCheckEvery == 0 && ctx.Err() != nil {
			return false
		}
		for i, j := range idx {
			sub[i] = combination[j]
		}
		score, f := s.Score(sub, freq)
		if f.Err == nil {
			sum += score
			valid++
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("scoring: score candidate: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("scoring: score candidate: %w", err)
	}
	if s.observe != nil {
		s.observe(seen)
	}
	if valid == 0 {
		return 0, nil
	}
	return sum / float64(valid), nil
}

func evenOddScore(evens int) float64 {
	switch evens {
	case 7, 8:
		return 1.0
	case 6, 9:
		return 0.7
	case 5, 10:
		return 0.4
	default:
		return 0.1
	}
}

func sumScore(sum int) float64 {
	switch {
	case sum >= 180 && sum <= 210:
		return 1.0
	case sum >= 170 && sum <= 220:
		return 0.7
	case sum >= 160 && sum <= 230:
		return 0.4
	default:
		return 0.1
	}
}

func primeScore(primes int) float64 {
	switch primes {
	case 5, 6:
		return 1.0
	case 4, 7:
		return 0.7
	case 3, 8:
		return 0.4
	default:
		return 0.1
	}
}

func isPrime(n int) bool {
	switch n {
	case 2, 3, 5, 7, 11, 13, 17, 19, 23:
		return true
	}
	return false
}
