package scoring

import "fmt"

// Binomial returns C(n, k), or 0 when k is outside [0, n].
func Binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	r := 1
	for i := 1; i <= k; i++ {
		r = r * (n - k + i) / i
	}
	return r
}

// Combinations calls fn with every k-element index subset of [0, n) in
// lexicographic order. The slice passed to fn is reused between calls.
// Returning false from fn stops the walk.
func Combinations(n, k int, fn func(idx []int) bool) error {
	if k < 0 || k > n {
		return fmt.Errorf("combinations: invalid k=%d for n=%d", k, n)
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		if !fn(idx) {
			return nil
		}
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return nil
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}
