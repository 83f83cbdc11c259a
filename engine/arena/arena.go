// Package arena provides frame-scoped bump allocation. Memory handed out by an
// Arena is only ever released in bulk with Reset; there is no per-object free.
package arena

// Arena is a bump allocator for values of a single type.
// Slices returned by Alloc stay valid until the next Reset; growth allocates a new
// block rather than moving existing ones.
type Arena[T any] struct {
	blocks    [][]T
	current   int
	blockSize int
}

// DefaultBlockSize is the element capacity of a block when none is given.
const DefaultBlockSize = 4096

// New creates an arena that allocates blocks of blockSize elements.
//
// Parameters:
//   - blockSize: elements per block, values < 1 use DefaultBlockSize
//
// Returns:
//   - *Arena[T]: the arena
func New[T any](blockSize int) *Arena[T] {
	if blockSize < 1 {
		blockSize = DefaultBlockSize
	}
	return &Arena[T]{blockSize: blockSize}
}

// Alloc returns a zeroed slice of n elements with capacity n.
//
// Parameters:
//   - n: the number of elements
//
// Returns:
//   - []T: the allocation, nil when n <= 0
func (a *Arena[T]) Alloc(n int) []T {
	if n <= 0 {
		return nil
	}
	for a.current < len(a.blocks) {
		b := a.blocks[a.current]
		if cap(b)-len(b) >= n {
			start := len(b)
			b = b[:start+n]
			a.blocks[a.current] = b
			out := b[start : start+n : start+n]
			clear(out)
			return out
		}
		a.current++
	}
	size := max(a.blockSize, n)
	b := make([]T, n, size)
	a.blocks = append(a.blocks, b)
	a.current = len(a.blocks) - 1
	return b[:n:n]
}

// Reset releases every allocation at once. Blocks are kept for reuse.
func (a *Arena[T]) Reset() {
	for i := range a.blocks {
		a.blocks[i] = a.blocks[i][:0]
	}
	a.current = 0
}

// Capacity returns the total number of elements the arena can hand out without allocating.
func (a *Arena[T]) Capacity() int {
	total := 0
	for _, b := range a.blocks {
		total += cap(b)
	}
	return total
}
