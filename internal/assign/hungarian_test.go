package assign

import (
	"math"
	"testing"
)

func assignmentCost(cost [][]float64, cols []int) float64 {
	var sum float64
	for i, j := range cols {
		sum += cost[i][j]
	}
	return sum
}

// bruteForce finds the optimal assignment by permutation, for cross-checking
// small instances.
func bruteForce(cost [][]float64) float64 {
	n := len(cost)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := math.Inf(1)
	var recurse func(k int)
	recurse = func(k int) {
		if k == n {
			if c := assignmentCost(cost, perm); c < best {
				best = c
			}
			return
		}
		for i := k; i < n; i++ {
			perm[k], perm[i] = perm[i], perm[k]
			recurse(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	recurse(0)
	return best
}

func TestSolveHungarian_KnownOptimum(t *testing.T) {
	t.Parallel()

	cost := [][]float64{
		{4, 1, 3},
		{2, 0, 5},
		{3, 2, 2},
	}
	cols := solveHungarian(cost)

	// Optimum is (0,1)+(1,0)+(2,2) = 1+2+2 = 5.
	if got := assignmentCost(cost, cols); got != 5 {
		t.Errorf("total cost = %f, want 5 (cols=%v)", got, cols)
	}
}

func TestSolveHungarian_IsPermutation(t *testing.T) {
	t.Parallel()

	cost := [][]float64{
		{0.1, 0.9, 0.4, 0.7},
		{0.8, 0.2, 0.6, 0.3},
		{0.5, 0.5, 0.5, 0.5},
		{0.9, 0.1, 0.2, 0.8},
	}
	cols := solveHungarian(cost)

	seen := make(map[int]bool)
	for _, j := range cols {
		if j < 0 || j >= len(cost) || seen[j] {
			t.Fatalf("cols = %v is not a permutation", cols)
		}
		seen[j] = true
	}
}

func TestSolveHungarian_MatchesBruteForce(t *testing.T) {
	t.Parallel()

	matrices := [][][]float64{
		{
			{-1, 0, 0, 0, 0},
			{0, -1, 0, 0, 0},
			{0, 0, 0, -1, 0},
			{0, 0, -1, 0, 0},
			{0, 0, 0, 0, -1},
		},
		{
			{2.5, 4.0, 1.5},
			{3.0, 2.0, 3.5},
			{1.0, 3.0, 2.0},
		},
		{
			{-0.9, -0.1, -0.3, -0.2},
			{-0.4, -0.85, -0.2, -0.1},
			{-0.1, -0.2, -0.05, -0.8},
			{-0.2, -0.3, -0.75, -0.4},
		},
	}

	for k, cost := range matrices {
		cols := solveHungarian(cost)
		got := assignmentCost(cost, cols)
		want := bruteForce(cost)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("matrix %d: hungarian cost %f, brute force %f (cols=%v)", k, got, want, cols)
		}
	}
}

func TestSolveHungarian_Empty(t *testing.T) {
	t.Parallel()

	if got := solveHungarian(nil); got != nil {
		t.Errorf("solveHungarian(nil) = %v, want nil", got)
	}
}
