// Package scoring implements the heuristic used to rank Lotofácil
// combinations: a frequency term derived from historical draws plus
// even/odd, sum and prime balance terms.
package scoring

import "github.com/alanyoungcy/lotoqubo/internal/domain"

// Frequencies counts how many times each number appears across draws. An
// empty input yields an empty table.
func Frequencies(draws []domain.Draw) domain.FrequencyTable {
	freq := make(domain.FrequencyTable, domain.MaxNumber)
	for _, d := range draws {
		for _, n := range d.Numbers {
			freq[n]++
		}
	}
	return freq
}

// estimateMaxFrequency returns the denominator used to normalise the raw
// frequency sum of a 15-number combination.
func estimateMaxFrequency(freq domain.FrequencyTable) float64 {
	known := freq.Known()
	switch {
	case known == 0:
		return 1
	case known >= domain.DrawSize:
		var sum int
		for _, c := range freq.TopCounts(domain.DrawSize) {
			sum += c
		}
		return float64(sum)
	default:
		var sum int
		for _, c := range freq {
			if c > 0 {
				sum += c
			}
		}
		return float64(sum) * float64(domain.DrawSize) / float64(known)
	}
}
