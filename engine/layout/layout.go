// Package layout plans the shared GPU upload buffers of a frame. Per-chunk local
// counts are turned into absolute offsets with a single sequential running sum,
// so every chunk owns a disjoint, densely packed region and no two writers race.
package layout

import (
	"golang.org/x/exp/constraints"
)

// PrefixSum returns the exclusive prefix sum of counts and the grand total.
// out[i] is the sum of counts[0:i].
//
// Parameters:
//   - counts: per-element local counts
//
// Returns:
//   - []T: exclusive prefix sums, same length as counts
//   - T: the sum of all counts
func PrefixSum[T constraints.Integer](counts []T) ([]T, T) {
	out := make([]T, len(counts))
	var running T
	for i, c := range counts {
		out[i] = running
		running += c
	}
	return out, running
}

// ChunkCounts holds the number of elements a single skeleton chunk writes into each region.
// Bones and SkinningTransforms are counted in TransformQvvs / transform units, everything else in uint4 units.
type ChunkCounts struct {
	Bones                 uint32
	SkinningTransforms    uint32
	BatchHeaders          uint32
	BatchMeshCommands     uint32
	ExpansionHeaders      uint32
	ExpansionMeshCommands uint32
	MeshSkinningCommands  uint32
}

// IsZero reports whether the chunk writes nothing.
func (c ChunkCounts) IsZero() bool {
	return c == ChunkCounts{}
}

// ChunkOffsets holds the absolute start of each of a chunk's regions.
// Meta regions are absolute uint4 indices into the meta upload buffer.
type ChunkOffsets struct {
	Bones                 uint32
	SkinningTransforms    uint32
	BatchHeaders          uint32
	BatchMeshCommands     uint32
	ExpansionHeaders      uint32
	ExpansionMeshCommands uint32
	MeshSkinningCommands  uint32
}

// BufferLayout partitions the meta upload buffer into contiguous regions, in order:
// batch headers, batch-skinning mesh commands, expansion headers, expansion mesh
// commands and mesh-skinning commands. Bone and skinning-transform totals size
// their own buffers.
type BufferLayout struct {
	BatchHeadersStart          uint32
	BatchHeadersCount          uint32
	BatchMeshCommandsStart     uint32
	BatchMeshCommandsCount     uint32
	ExpansionHeadersStart      uint32
	ExpansionHeadersCount      uint32
	ExpansionMeshCommandsStart uint32
	ExpansionMeshCommandsCount uint32
	MeshSkinningCommandsStart  uint32
	MeshSkinningCommandsCount  uint32

	// MetaSize is the total number of uint4 elements in the meta buffer.
	MetaSize uint32
	// BonesCount is the total number of bone transforms to upload.
	BonesCount uint32
	// SkinningTransformsCount is the number of scratch transforms expanded skeletons need.
	SkinningTransformsCount uint32
}

// Plan converts per-chunk counts into a BufferLayout and absolute per-chunk offsets.
// Plan is a pure function of counts.
//
// Parameters:
//   - counts: per-chunk local counts, in chunk order
//
// Returns:
//   - BufferLayout: region starts and totals
//   - []ChunkOffsets: absolute offsets, one per input chunk
func Plan(counts []ChunkCounts) (BufferLayout, []ChunkOffsets) {
	offsets := make([]ChunkOffsets, len(counts))
	var totals ChunkCounts
	for i, c := range counts {
		offsets[i] = ChunkOffsets{
			Bones:                 totals.Bones,
			SkinningTransforms:    totals.SkinningTransforms,
			BatchHeaders:          totals.BatchHeaders,
			BatchMeshCommands:     totals.BatchMeshCommands,
			ExpansionHeaders:      totals.ExpansionHeaders,
			ExpansionMeshCommands: totals.ExpansionMeshCommands,
			MeshSkinningCommands:  totals.MeshSkinningCommands,
		}
		totals.Bones += c.Bones
		totals.SkinningTransforms += c.SkinningTransforms
		totals.BatchHeaders += c.BatchHeaders
		totals.BatchMeshCommands += c.BatchMeshCommands
		totals.ExpansionHeaders += c.ExpansionHeaders
		totals.ExpansionMeshCommands += c.ExpansionMeshCommands
		totals.MeshSkinningCommands += c.MeshSkinningCommands
	}

	var l BufferLayout
	l.BatchHeadersCount = totals.BatchHeaders
	l.BatchMeshCommandsStart = l.BatchHeadersStart + l.BatchHeadersCount
	l.BatchMeshCommandsCount = totals.BatchMeshCommands
	l.ExpansionHeadersStart = l.BatchMeshCommandsStart + l.BatchMeshCommandsCount
	l.ExpansionHeadersCount = totals.ExpansionHeaders
	l.ExpansionMeshCommandsStart = l.ExpansionHeadersStart + l.ExpansionHeadersCount
	l.ExpansionMeshCommandsCount = totals.ExpansionMeshCommands
	l.MeshSkinningCommandsStart = l.ExpansionMeshCommandsStart + l.ExpansionMeshCommandsCount
	l.MeshSkinningCommandsCount = totals.MeshSkinningCommands
	l.MetaSize = l.MeshSkinningCommandsStart + l.MeshSkinningCommandsCount
	l.BonesCount = totals.Bones
	l.SkinningTransformsCount = totals.SkinningTransforms

	for i := range offsets {
		o := &offsets[i]
		o.BatchHeaders += l.BatchHeadersStart
		o.BatchMeshCommands += l.BatchMeshCommandsStart
		o.ExpansionHeaders += l.ExpansionHeadersStart
		o.ExpansionMeshCommands += l.ExpansionMeshCommandsStart
		o.MeshSkinningCommands += l.MeshSkinningCommandsStart
	}
	return l, offsets
}
