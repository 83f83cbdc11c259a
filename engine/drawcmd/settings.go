// Package drawcmd turns per-chunk visibility into the flat arrays an indirect
// multi-draw consumes. Visible entities are binned by full draw state on
// per-slot collectors, the bins are merged into one deterministic sorted list,
// and every bin is expanded into instance indices, draw commands and draw ranges.
package drawcmd

import "cmp"

// DrawFlags are per-draw state bits that take part in binning.
type DrawFlags uint16

const (
	// FlagFlipWinding draws with reversed triangle winding.
	FlagFlipWinding DrawFlags = 1 << iota
	// FlagHasMotion marks draws that write motion vectors.
	FlagHasMotion
	// FlagIsLightMapped marks draws that sample a lightmap.
	FlagIsLightMapped
	// FlagHasSortingPosition marks depth-sorted draws. Each instance becomes its own draw command.
	FlagHasSortingPosition
	// FlagLodCrossfadeKeyword enables LOD crossfade in the shader.
	FlagLodCrossfadeKeyword
	// FlagLodCrossfadeValuePacked packs the crossfade byte into the top 8 bits of each instance index.
	FlagLodCrossfadeValuePacked
)

// DrawCommandSettings is the full render state of a draw. Two draws can share a
// bin only if every field matches.
type DrawCommandSettings struct {
	BatchID           uint32
	MeshID            uint32
	MaterialID        uint32
	SubMeshIndex      uint16
	SplitMask         uint8
	MeshLod           uint8
	Flags             DrawFlags
	FilterIndex       uint32
	RenderingPriority int32
}

// DepthSorted reports whether the draw needs per-instance sort placement.
func (s DrawCommandSettings) DepthSorted() bool {
	return s.Flags&FlagHasSortingPosition != 0
}

// Key packs the settings into a BinKey and caches its hash.
//
// Returns:
//   - BinKey: the packed 32-byte key
func (s DrawCommandSettings) Key() BinKey {
	var k BinKey
	k.words[0] = uint64(s.FilterIndex)<<32 | uint64(uint32(s.RenderingPriority)^0x80000000)
	k.words[1] = uint64(s.BatchID)<<32 | uint64(s.MaterialID)
	k.words[2] = uint64(s.MeshID)<<32 | uint64(s.SubMeshIndex)<<16 | uint64(s.Flags)
	k.words[3] = uint64(s.MeshLod)<<40 | uint64(s.SplitMask)<<32
	k.hash = hashWords(&k.words)
	return k
}

// Equals reports whether every field of s and o matches.
func (s DrawCommandSettings) Equals(o DrawCommandSettings) bool {
	return s.Key().Equals(o.Key())
}

// BinKey is the packed form of DrawCommandSettings: four 64-bit words ordered
// filter/priority, batch/material, mesh/submesh/flags, lod/split. The hash is
// computed once on construction.
type BinKey struct {
	words [4]uint64
	hash  uint64
}

// Hash returns the cached hash.
func (k BinKey) Hash() uint64 { return k.hash }

// Equals reports whether both keys encode the same settings.
func (k BinKey) Equals(o BinKey) bool {
	return k.hash == o.hash && k.words == o.words
}

// CompareTo orders keys as 256-bit unsigned integers, most significant word first.
//
// Parameters:
//   - o: the other key
//
// Returns:
//   - int: -1, 0 or +1
func (k BinKey) CompareTo(o BinKey) int {
	for i := range k.words {
		if c := cmp.Compare(k.words[i], o.words[i]); c != 0 {
			return c
		}
	}
	return 0
}

// Settings unpacks the key.
func (k BinKey) Settings() DrawCommandSettings {
	return DrawCommandSettings{
		FilterIndex:       uint32(k.words[0] >> 32),
		RenderingPriority: int32(uint32(k.words[0]) ^ 0x80000000),
		BatchID:           uint32(k.words[1] >> 32),
		MaterialID:        uint32(k.words[1]),
		MeshID:            uint32(k.words[2] >> 32),
		SubMeshIndex:      uint16(k.words[2] >> 16),
		Flags:             DrawFlags(k.words[2]),
		MeshLod:           uint8(k.words[3] >> 40),
		SplitMask:         uint8(k.words[3] >> 32),
	}
}

// FilterIndex returns the filter index without unpacking the whole key.
func (k BinKey) FilterIndex() uint32 { return uint32(k.words[0] >> 32) }

// DepthSorted reports whether the key has FlagHasSortingPosition set.
func (k BinKey) DepthSorted() bool { return DrawFlags(k.words[2])&FlagHasSortingPosition != 0 }

func hashWords(w *[4]uint64) uint64 {
	h := uint64(0x9E3779B97F4A7C15)
	for _, v := range w {
		h ^= mix64(v + 0x632BE59BD9B4E019)
		h *= 0xBF58476D1CE4E5B9
	}
	return mix64(h)
}

// mix64 is the splitmix64 finalizer.
func mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return x
}
