package common

import "math/bits"

// ChunkCapacity is the maximum number of entities stored in a single chunk.
// One Mask128 bit addresses one entity slot of a chunk.
const ChunkCapacity = 128

// Mask128 is a per-chunk bitmask with one bit per entity slot.
// Bit i < 64 lives in Lower, bits 64..127 live in Upper.
type Mask128 struct {
	Lower uint64
	Upper uint64
}

// MaskFirstN returns a mask with the first n bits set.
//
// Parameters:
//   - n: the number of leading entity slots to mark (clamped to [0, 128])
//
// Returns:
//   - Mask128: the resulting mask
func MaskFirstN(n int) Mask128 {
	switch {
	case n <= 0:
		return Mask128{}
	case n < 64:
		return Mask128{Lower: (uint64(1) << n) - 1}
	case n == 64:
		return Mask128{Lower: ^uint64(0)}
	case n < 128:
		return Mask128{Lower: ^uint64(0), Upper: (uint64(1) << (n - 64)) - 1}
	default:
		return Mask128{Lower: ^uint64(0), Upper: ^uint64(0)}
	}
}

// IsSet reports whether bit i is set.
func (m Mask128) IsSet(i int) bool {
	if i < 64 {
		return m.Lower&(uint64(1)<<i) != 0
	}
	return m.Upper&(uint64(1)<<(i-64)) != 0
}

// Set sets bit i.
func (m *Mask128) Set(i int) {
	if i < 64 {
		m.Lower |= uint64(1) << i
		return
	}
	m.Upper |= uint64(1) << (i - 64)
}

// Clear clears bit i.
func (m *Mask128) Clear(i int) {
	if i < 64 {
		m.Lower &^= uint64(1) << i
		return
	}
	m.Upper &^= uint64(1) << (i - 64)
}

// Count returns the number of set bits.
func (m Mask128) Count() int {
	return bits.OnesCount64(m.Lower) + bits.OnesCount64(m.Upper)
}

// IsZero reports whether no bit is set.
func (m Mask128) IsZero() bool {
	return m.Lower == 0 && m.Upper == 0
}

// And returns m & o.
func (m Mask128) And(o Mask128) Mask128 {
	return Mask128{Lower: m.Lower & o.Lower, Upper: m.Upper & o.Upper}
}

// Or returns m | o.
func (m Mask128) Or(o Mask128) Mask128 {
	return Mask128{Lower: m.Lower | o.Lower, Upper: m.Upper | o.Upper}
}

// AndNot returns m &^ o.
func (m Mask128) AndNot(o Mask128) Mask128 {
	return Mask128{Lower: m.Lower &^ o.Lower, Upper: m.Upper &^ o.Upper}
}

// Each calls fn with the index of every set bit in ascending order.
//
// Parameters:
//   - fn: callback receiving the bit index in [0, 128)
func (m Mask128) Each(fn func(i int)) {
	for w := m.Lower; w != 0; w &= w - 1 {
		fn(bits.TrailingZeros64(w))
	}
	for w := m.Upper; w != 0; w &= w - 1 {
		fn(64 + bits.TrailingZeros64(w))
	}
}
