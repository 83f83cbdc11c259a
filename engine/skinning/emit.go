package skinning

import (
	"github.com/Carmen-Shannon/oxy-dispatch/common"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/broker"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/layout"
)

// chunkWriter emits the streams of one skeleton chunk. The same emission code runs twice:
// once with write unset to count what the chunk needs, and once after layout planning to
// write at the chunk's absolute offsets.
type chunkWriter struct {
	write  bool
	base   layout.ChunkOffsets
	counts layout.ChunkCounts
	meta   []broker.Uint4
	bones  []common.TransformQvvs
}

func (w *chunkWriter) put(counter *uint32, base uint32, v broker.Uint4) uint32 {
	idx := base + *counter
	*counter++
	if w.write {
		w.meta[idx] = v
	}
	return idx
}

func (w *chunkWriter) set(idx uint32, v broker.Uint4) {
	if w.write {
		w.meta[idx] = v
	}
}

func (w *chunkWriter) batchHeader() uint32 {
	return w.put(&w.counts.BatchHeaders, w.base.BatchHeaders, broker.Uint4{})
}

func (w *chunkWriter) batchCommand(c SkinningStreamMeshCommand) uint32 {
	return w.put(&w.counts.BatchMeshCommands, w.base.BatchMeshCommands, c.Uint4())
}

func (w *chunkWriter) expansionHeader() uint32 {
	return w.put(&w.counts.ExpansionHeaders, w.base.ExpansionHeaders, broker.Uint4{})
}

func (w *chunkWriter) expansionCommand(c SkinningStreamMeshCommand) uint32 {
	return w.put(&w.counts.ExpansionMeshCommands, w.base.ExpansionMeshCommands, c.Uint4())
}

func (w *chunkWriter) meshSkinningCommand(c SkinningStreamMeshCommand) uint32 {
	return w.put(&w.counts.MeshSkinningCommands, w.base.MeshSkinningCommands, c.Uint4())
}

// uploadBones reserves room for a bone snapshot and copies it when writing.
func (w *chunkWriter) uploadBones(src []common.TransformQvvs) uint32 {
	off := w.base.Bones + w.counts.Bones
	w.counts.Bones += uint32(len(src))
	if w.write {
		copy(w.bones[off:], src)
	}
	return off
}

// allocScratch reserves n transforms in the skinning-transforms buffer.
func (w *chunkWriter) allocScratch(n int) uint32 {
	off := w.base.SkinningTransforms + w.counts.SkinningTransforms
	w.counts.SkinningTransforms += uint32(n)
	return off
}

// requestOps returns the ops a request needs besides conversion.
func requestOps(u ShaderUsage) Op {
	ops := OpDstGlobal
	if u.IsVertex() {
		ops |= OpStoreTransforms
	} else {
		ops |= OpSkinVertices
		if u.InPlace() {
			ops |= OpInPlace
		}
	}
	if u.Dqs() {
		ops |= OpDqs
	}
	if u.Legacy() {
		ops |= OpLegacy
	}
	return ops
}

func convertOps(u ShaderUsage) Op {
	if u.Dqs() {
		return OpConvert | OpDqs
	}
	return OpConvert
}

// sameConversion reports whether b can reuse the transforms a converted.
func sameConversion(a, b *MeshSkinningRequest) bool {
	return a != nil && a.MeshIndex == b.MeshIndex && a.Usage.category() == b.Usage.category()
}

// emitChain writes the header, commands and bone snapshot of one chain.
func (w *chunkWriter) emitChain(ch *chain, skeleton *Skeleton, meshes []MeshInfo, threshold int) {
	bones := skeleton.Bones[ch.history]
	if len(bones) != ch.boneCount {
		bones = skeleton.Bones[HistoryCurrent]
	}
	h := SkinningStreamHeader{
		BoneCount:     uint32(ch.boneCount),
		History:       ch.history,
		Large:         ch.strategy.Expanded(),
		EntityInChunk: uint32(ch.skeleton.Index),
		BoneOffset:    w.uploadBones(bones),
	}

	switch ch.strategy {
	case SingleMeshBatched:
		w.emitSingleMeshBatched(h, ch, meshes)
	case MultiMeshBatched:
		if ch.distinctBones <= threshold {
			w.emitMultiMeshBatchedFit(h, ch, meshes)
		} else {
			w.emitMultiMeshBatchedSpill(h, ch, meshes)
		}
	default:
		w.emitExpanded(h, ch, meshes)
	}
}

// emitSingleMeshBatched converts the mesh's bones into group-shared memory at offset 0 and
// runs every request from there.
func (w *chunkWriter) emitSingleMeshBatched(h SkinningStreamHeader, ch *chain, meshes []MeshInfo) {
	hIdx := w.batchHeader()
	h.CommandStart = w.base.BatchMeshCommands + w.counts.BatchMeshCommands

	var prev *MeshSkinningRequest
	for i := range ch.requests {
		r := &ch.requests[i]
		ops := requestOps(r.Usage)
		if !sameConversion(prev, r) {
			ops |= convertOps(r.Usage)
		}
		w.batchCommand(SkinningStreamMeshCommand{
			Ops:           ops,
			MeshBoneCount: uint32(meshes[r.MeshIndex].BoneCount),
			MeshIndex:     uint32(r.MeshIndex),
			DstOffset:     r.DestinationOffset,
		})
		prev = r
	}

	h.CommandCount = uint32(len(ch.requests))
	w.set(hIdx, h.Uint4())
}

// emitMultiMeshBatchedFit gives every distinct mesh its own group-shared region; all
// conversions stay resident for the whole header.
func (w *chunkWriter) emitMultiMeshBatchedFit(h SkinningStreamHeader, ch *chain, meshes []MeshInfo) {
	hIdx := w.batchHeader()
	h.CommandStart = w.base.BatchMeshCommands + w.counts.BatchMeshCommands

	shared := make(map[int32]uint32, 4)
	next := uint32(0)
	var prev *MeshSkinningRequest
	for i := range ch.requests {
		r := &ch.requests[i]
		meshBones := uint32(meshes[r.MeshIndex].BoneCount)
		off, ok := shared[r.MeshIndex]
		if !ok {
			off = next
			shared[r.MeshIndex] = off
			next += meshBones
		}
		ops := requestOps(r.Usage)
		if !sameConversion(prev, r) {
			ops |= convertOps(r.Usage)
		}
		w.batchCommand(SkinningStreamMeshCommand{
			Ops:           ops,
			MeshBoneCount: meshBones,
			MeshIndex:     uint32(r.MeshIndex),
			SrcOffset:     off,
			DstOffset:     r.DestinationOffset,
		})
		prev = r
	}

	h.CommandCount = uint32(len(ch.requests))
	w.set(hIdx, h.Uint4())
}

// emitMultiMeshBatchedSpill handles meshes that fit individually but not together: every
// conversion is written to the skinning-transforms buffer first and requests read it back.
func (w *chunkWriter) emitMultiMeshBatchedSpill(h SkinningStreamHeader, ch *chain, meshes []MeshInfo) {
	hIdx := w.batchHeader()
	h.CommandStart = w.base.BatchMeshCommands + w.counts.BatchMeshCommands
	count := uint32(0)

	var prev *MeshSkinningRequest
	var scratch uint32
	for i := range ch.requests {
		r := &ch.requests[i]
		meshBones := uint32(meshes[r.MeshIndex].BoneCount)
		if !sameConversion(prev, r) {
			scratch = w.allocScratch(int(meshBones))
			w.batchCommand(SkinningStreamMeshCommand{
				Ops:           convertOps(r.Usage) | OpStoreTransforms | OpDstGlobal,
				MeshBoneCount: meshBones,
				MeshIndex:     uint32(r.MeshIndex),
				DstOffset:     scratch,
			})
			count++
		}
		w.batchCommand(SkinningStreamMeshCommand{
			Ops:           requestOps(r.Usage) | OpSrcGlobal,
			MeshBoneCount: meshBones,
			MeshIndex:     uint32(r.MeshIndex),
			SrcOffset:     scratch,
			DstOffset:     r.DestinationOffset,
		})
		count++
		prev = r
	}

	h.CommandCount = count
	w.set(hIdx, h.Uint4())
}

// emitExpanded runs conversions in the expansion pass and vertex skinning in the
// mesh-skinning pass. A vertex request whose conversion nobody else reuses is converted
// straight into its destination; shared conversions go through the skinning-transforms buffer.
func (w *chunkWriter) emitExpanded(h SkinningStreamHeader, ch *chain, meshes []MeshInfo) {
	hIdx := w.expansionHeader()
	h.CommandStart = w.base.ExpansionMeshCommands + w.counts.ExpansionMeshCommands
	count := uint32(0)

	var prev *MeshSkinningRequest
	var scratch uint32
	for i := range ch.requests {
		r := &ch.requests[i]
		meshBones := uint32(meshes[r.MeshIndex].BoneCount)
		var next *MeshSkinningRequest
		if i+1 < len(ch.requests) {
			next = &ch.requests[i+1]
		}
		needsConvert := !sameConversion(prev, r)
		shared := next != nil && sameConversion(r, next)

		switch {
		case r.Usage.IsVertex() && needsConvert && !shared:
			w.expansionCommand(SkinningStreamMeshCommand{
				Ops:           requestOps(r.Usage) | convertOps(r.Usage),
				MeshBoneCount: meshBones,
				MeshIndex:     uint32(r.MeshIndex),
				DstOffset:     r.DestinationOffset,
			})
			count++
			prev = r
			continue
		case needsConvert:
			scratch = w.allocScratch(int(meshBones))
			w.expansionCommand(SkinningStreamMeshCommand{
				Ops:           convertOps(r.Usage) | OpStoreTransforms | OpDstGlobal,
				MeshBoneCount: meshBones,
				MeshIndex:     uint32(r.MeshIndex),
				DstOffset:     scratch,
			})
			count++
		}

		cmd := SkinningStreamMeshCommand{
			Ops:           requestOps(r.Usage) | OpSrcGlobal,
			MeshBoneCount: meshBones,
			MeshIndex:     uint32(r.MeshIndex),
			SrcOffset:     scratch,
			DstOffset:     r.DestinationOffset,
		}
		if r.Usage.IsVertex() {
			w.expansionCommand(cmd)
			count++
		} else {
			w.meshSkinningCommand(cmd)
		}
		prev = r
	}

	h.CommandCount = count
	w.set(hIdx, h.Uint4())
}
