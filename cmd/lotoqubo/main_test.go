package main

import "testing"

func TestParseBudgets(t *testing.T) {
	got, err := parseBudgets(" 100, 300.5,,")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 100 || got[1] != 300.5 {
		t.Fatalf("budgets = %v", got)
	}
	for _, bad := range []string{",", "abc", "100,x", "NaN", "Inf", "100,-Inf", "0", "-5"} {
		if _, err := parseBudgets(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
