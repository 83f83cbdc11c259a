package jobs

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitIsContiguousAndBalanced(t *testing.T) {
	ranges := split(10, 4)
	require.Len(t, ranges, 4)
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 8}, {8, 10}}, ranges)
	assert.Len(t, split(3, 8), 3, "never more ranges than items")
}

func TestForEachBatchVisitsEveryItemOnce(t *testing.T) {
	pools := map[string]Pool{
		"serial":   Serial(),
		"parallel": NewPool(4),
	}
	for name, p := range pools {
		t.Run(name, func(t *testing.T) {
			defer p.Release()
			const n = 1000
			var hits [n]atomic.Int32
			var maxBatch atomic.Int32
			p.ForEachBatch(n, 7, func(batch, start, end int) {
				for {
					cur := maxBatch.Load()
					if int32(batch) <= cur || maxBatch.CompareAndSwap(cur, int32(batch)) {
						break
					}
				}
				for i := start; i < end; i++ {
					hits[i].Add(1)
				}
			})
			for i := range hits {
				assert.Equal(t, int32(1), hits[i].Load(), "item %d", i)
			}
			assert.Less(t, maxBatch.Load(), int32(7))

			called := false
			p.ForEachBatch(0, 4, func(int, int, int) { called = true })
			assert.False(t, called)
		})
	}
}

func TestRunWaitsForAll(t *testing.T) {
	p := NewPool(3)
	defer p.Release()

	var count atomic.Int32
	fns := make([]func(), 10)
	for i := range fns {
		fns[i] = func() { count.Add(1) }
	}
	p.Run(fns...)
	assert.Equal(t, int32(10), count.Load())

	p.Run()
	Serial().Run(fns[:2]...)
	assert.Equal(t, int32(12), count.Load())
}

func TestNewPoolDefaultsWorkers(t *testing.T) {
	p := NewPool(0)
	defer p.Release()
	assert.GreaterOrEqual(t, p.Workers(), 1)
	assert.Equal(t, 1, Serial().Workers())
}
