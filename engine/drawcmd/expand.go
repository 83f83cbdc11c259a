package drawcmd

import (
	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/go-gl/mathgl/mgl32"
)

// instanceIndexMask keeps instance indices within 24 bits when a crossfade byte is packed on top.
const instanceIndexMask = 0x00FFFFFF

// Output is the flat draw data of one frame.
type Output struct {
	VisibleInstances []uint32
	SortingPositions []mgl32.Vec3
	DrawCommands     []BatchDrawCommand
	DrawRanges       []BatchDrawRange
	Bins             *Bins
}

func (c *collector) Expand(bins *Bins, chunks []*DrawChunk) *Output {
	out := &Output{
		VisibleInstances: make([]uint32, bins.TotalInstances),
		SortingPositions: make([]mgl32.Vec3, bins.TotalSortingPositions),
		DrawCommands:     make([]BatchDrawCommand, bins.TotalDrawCommands),
		Bins:             bins,
	}

	c.pool.ForEachBatch(len(bins.WorkItems), 0, func(_, start, end int) {
		for i := start; i < end; i++ {
			c.expandWorkItem(bins, &bins.WorkItems[i], chunks, out)
		}
	})

	c.pool.ForEachBatch(len(bins.BinIndices), 0, func(_, start, end int) {
		for b := start; b < end; b++ {
			bi := bins.BinIndices[b]
			WriteDrawCommands(bins.Key(b).Settings(), bi, c.maxInstancesPerDrawCommand, out.DrawCommands[bi.DrawCommandOffset:bi.DrawCommandOffset+bi.DrawCommandCount])
		}
	})

	out.DrawRanges = GenerateRanges(out.DrawCommands, c.maxInstancesPerRange, c.maxCommandsPerRange)
	return out
}

// expandWorkItem walks one slot's stream for a bin and writes its instances at the item's offsets.
func (c *collector) expandWorkItem(bins *Bins, item *DrawCommandWorkItem, chunks []*DrawChunk, out *Output) {
	key := bins.Key(item.Bin)
	packCrossfade := DrawFlags(key.words[2])&FlagLodCrossfadeValuePacked != 0
	sorted := item.SortingOffset >= 0

	inst := item.InstanceOffset
	pos := item.SortingOffset
	c.slots[item.Slot].each(item.slotBin, func(v visItem) {
		chunk := chunks[v.chunk]
		v.mask.Each(func(e int) {
			out.VisibleInstances[inst] = InstanceIndex(chunk, e, packCrossfade)
			inst++
			if sorted {
				out.SortingPositions[pos] = SortingPosition(chunk, e)
				pos++
			}
		})
	})
}

// InstanceIndex returns the instance index of entity e, optionally with its LOD crossfade
// byte in the top 8 bits.
//
// Parameters:
//   - chunk: the chunk holding the entity
//   - e: the entity slot
//   - packCrossfade: whether to pack the crossfade byte
//
// Returns:
//   - uint32: the instance index
func InstanceIndex(chunk *DrawChunk, e int, packCrossfade bool) uint32 {
	idx := chunk.InstanceBase + uint32(e)
	if !packCrossfade {
		return idx
	}
	var fade uint32
	if e < len(chunk.LodCrossfade) {
		fade = uint32(chunk.LodCrossfade[e])
	}
	return idx&instanceIndexMask | fade<<24
}

// SortingPosition returns the world position used to depth sort entity e. When the entity
// has a non-identity post-process matrix the cached position is transformed by it.
//
// Parameters:
//   - chunk: the chunk holding the entity
//   - e: the entity slot
//
// Returns:
//   - mgl32.Vec3: the sorting position
func SortingPosition(chunk *DrawChunk, e int) mgl32.Vec3 {
	var p mgl32.Vec3
	if e < len(chunk.Positions) {
		p = chunk.Positions[e]
	}
	if e < len(chunk.PostProcess) && !common.IsIdentity(chunk.PostProcess[e]) {
		p = chunk.PostProcess[e].Mul4x1(p.Vec4(1)).Vec3()
	}
	return p
}
