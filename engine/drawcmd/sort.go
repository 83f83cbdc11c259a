package drawcmd

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/jobs"
)

// sortSlices is the number of independently sorted runs merged by SortBins.
const sortSlices = 4

// SortBins returns the permutation that orders keys by CompareTo.
// The keys are split into four runs which are sorted in parallel and then merged
// with a sequential four-way min selection. Keys are distinct, so the result is
// the unique total order regardless of how the runs were split.
//
// Parameters:
//   - pool: the pool the four runs are sorted on
//   - keys: distinct bin keys
//
// Returns:
//   - []int32: indices into keys in ascending key order
func SortBins(pool jobs.Pool, keys []BinKey) []int32 {
	idx := make([]int32, len(keys))
	for i := range idx {
		idx[i] = int32(i)
	}
	if len(idx) < 2 {
		return idx
	}

	compare := func(a, b int32) int { return keys[a].CompareTo(keys[b]) }

	runs := make([][]int32, 0, sortSlices)
	n := len(idx)
	for i := range sortSlices {
		lo, hi := i*n/sortSlices, (i+1)*n/sortSlices
		runs = append(runs, idx[lo:hi])
	}

	fns := make([]func(), len(runs))
	for i, r := range runs {
		fns[i] = func() { slices.SortFunc(r, compare) }
	}
	pool.Run(fns...)

	out := make([]int32, 0, n)
	var heads [sortSlices]int
	for len(out) < n {
		best := -1
		for r := range runs {
			if heads[r] == len(runs[r]) {
				continue
			}
			if best < 0 || compare(runs[r][heads[r]], runs[best][heads[best]]) < 0 {
				best = r
			}
		}
		out = append(out, runs[best][heads[best]])
		heads[best]++
	}
	return out
}
