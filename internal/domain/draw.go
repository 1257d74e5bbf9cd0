package domain

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// Lotofácil number range and draw size.
const (
	MinNumber = 1
	MaxNumber = 25
	DrawSize  = 15
)

// Draw is one historical contest result.
type Draw struct {
	Contest   int
	Date      string
	Numbers   []int
	FetchedAt time.Time
}

// Validate reports whether d holds exactly 15 distinct numbers in [1,25].
func (d Draw) Validate() error {
	if d.Contest <= 0 {
		return fmt.Errorf("%w: contest %d", ErrInvalidCombination, d.Contest)
	}
	return ValidateCombination(d.Numbers, DrawSize)
}

// ValidateCombination checks that nums has the given size and contains only
// distinct values in [MinNumber, MaxNumber].
func ValidateCombination(nums []int, size int) error {
	if len(nums) != size {
		return fmt.Errorf("%w: expected %d numbers, got %d", ErrInvalidCombination, size, len(nums))
	}
	var seen [MaxNumber + 1]bool
	for _, n := range nums {
		if n < MinNumber || n > MaxNumber {
			return fmt.Errorf("%w: number %d out of range", ErrInvalidCombination, n)
		}
		if seen[n] {
			return fmt.Errorf("%w: duplicate number %d", ErrInvalidCombination, n)
		}
		seen[n] = true
	}
	return nil
}

// FrequencyTable maps a number to how many times it was drawn. Absent numbers
// count as zero.
type FrequencyTable map[int]int

// Get returns the count for n, zero when absent.
func (f FrequencyTable) Get(n int) int {
	return f[n]
}

// Known returns how many numbers have a positive count.
func (f FrequencyTable) Known() int {
	k := 0
	for _, c := range f {
		if c > 0 {
			k++
		}
	}
	return k
}

// TopNumbers returns up to n numbers with a positive count, ordered by count
// descending and then by number ascending.
func (f FrequencyTable) TopNumbers(n int) []int {
	nums := make([]int, 0, len(f))
	for num, c := range f {
		if c > 0 {
			nums = append(nums, num)
		}
	}
	sortByFrequency(nums, f)
	if len(nums) > n {
		nums = nums[:n]
	}
	return nums
}

// TopCounts returns the n highest positive counts in descending order.
func (f FrequencyTable) TopCounts(n int) []int {
	top := f.TopNumbers(n)
	out := make([]int, len(top))
	for i, num := range top {
		out[i] = f[num]
	}
	return out
}

func sortByFrequency(nums []int, f FrequencyTable) {
	slices.SortFunc(nums, func(a, b int) int {
		if c := cmp.Compare(f[b], f[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
}
