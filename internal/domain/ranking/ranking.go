// Package ranking turns a column of values into 1-based positions.
//
// Ordering is total and deterministic: values by the requested direction,
// then team key ascending. NaN sorts after every number regardless of
// direction, so a degenerate column never outranks real data.
package ranking

import (
	"math"
	"sort"
)

// Direction selects which end of the scale is rank 1.
type Direction int

// Directions.
const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

// Positions returns 1-based positions for values, index-aligned with teams.
// Inputs are not modified.
func Positions(teams []string, values []float64, dir Direction) []int {
	n := len(values)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return less(teams[order[a]], values[order[a]], teams[order[b]], values[order[b]], dir)
	})
	ranks := make([]int, n)
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

func less(ta string, va float64, tb string, vb float64, dir Direction) bool {
	nanA, nanB := math.IsNaN(va), math.IsNaN(vb)
	switch {
	case nanA && nanB:
		return ta < tb
	case nanA:
		return false
	case nanB:
		return true
	}
	if va != vb {
		if dir == LowerIsBetter {
			return va < vb
		}
		return va > vb
	}
	return ta < tb
}
