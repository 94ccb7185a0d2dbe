package assign

import "math"

// solveHungarian computes a minimum-cost perfect matching on a square cost
// matrix using the Kuhn-Munkres algorithm with row/column potentials, O(n³).
// The returned slice maps each row index to its assigned column index.
//
// The implementation maintains the standard invariant that reduced costs
// stay non-negative for matched pairs; potentials are updated by the minimal
// slack delta on every augmenting step.
func solveHungarian(cost [][]float64) []int {
	n := len(cost)
	if n == 0 {
		return nil
	}

	// 1-based arrays; index 0 is the virtual unmatched slot.
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	match := make([]int, n+1) // match[j] = row currently assigned to column j
	way := make([]int, n+1)

	for i := 1; i <= n; i++ {
		match[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}

		for {
			used[j0] = true
			i0 := match[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[match[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if match[j0] == 0 {
				break
			}
		}

		// Augment along the alternating path back to the start.
		for j0 != 0 {
			j1 := way[j0]
			match[j0] = match[j1]
			j0 = j1
		}
	}

	result := make([]int, n)
	for j := 1; j <= n; j++ {
		if match[j] > 0 {
			result[match[j]-1] = j - 1
		}
	}
	return result
}
