package skinning

import "github.com/Carmen-Shannon/oxy-dispatch/engine/broker"

// Op is a micro-op flag of a mesh command. A command runs its ops in the order
// load, convert, skin, store.
type Op uint8

const (
	// OpConvert multiplies bones by the mesh bindposes. Omitted when the previous command
	// already converted the same mesh the same way.
	OpConvert Op = 1 << iota
	// OpDqs converts to dual quaternions instead of matrices.
	OpDqs
	// OpSkinVertices skins the mesh vertices with the converted transforms.
	OpSkinVertices
	// OpStoreTransforms writes the converted transforms out.
	OpStoreTransforms
	// OpSrcGlobal reads converted transforms from the skinning-transforms buffer instead of group-shared memory.
	OpSrcGlobal
	// OpDstGlobal writes to a global buffer (deform or skinning-transforms) instead of group-shared memory.
	OpDstGlobal
	// OpInPlace skins the vertices already in the destination.
	OpInPlace
	// OpLegacy uses the legacy output layout.
	OpLegacy
)

// Header field layout of SkinningStreamHeader.X.
const (
	headerBoneCountMask = 0xFFFF
	headerHistoryShift  = 16
	headerLargeShift    = 18
	headerEntityShift   = 20
)

// MaxHeaderBones is the largest skeleton bone count a header can encode.
const MaxHeaderBones = headerBoneCountMask

// SkinningStreamHeader opens the command run of one skeleton and history.
type SkinningStreamHeader struct {
	BoneCount     uint32
	History       History
	Large         bool
	EntityInChunk uint32
	BoneOffset    uint32
	CommandStart  uint32
	CommandCount  uint32
}

// Uint4 encodes the header: X = bones | history<<16 | large<<18 | entity<<20,
// Y = bone offset, Z = first command, W = command count.
func (h SkinningStreamHeader) Uint4() broker.Uint4 {
	x := h.BoneCount&headerBoneCountMask | uint32(h.History)<<headerHistoryShift | h.EntityInChunk<<headerEntityShift
	if h.Large {
		x |= 1 << headerLargeShift
	}
	return broker.Uint4{x, h.BoneOffset, h.CommandStart, h.CommandCount}
}

// DecodeHeader is the inverse of SkinningStreamHeader.Uint4.
func DecodeHeader(v broker.Uint4) SkinningStreamHeader {
	return SkinningStreamHeader{
		BoneCount:     v[0] & headerBoneCountMask,
		History:       History(v[0] >> headerHistoryShift & 0b11),
		Large:         v[0]>>headerLargeShift&1 != 0,
		EntityInChunk: v[0] >> headerEntityShift,
		BoneOffset:    v[1],
		CommandStart:  v[2],
		CommandCount:  v[3],
	}
}

// SkinningStreamMeshCommand is one instruction of a header's run.
type SkinningStreamMeshCommand struct {
	Ops           Op
	MeshBoneCount uint32
	MeshIndex     uint32
	SrcOffset     uint32
	DstOffset     uint32
}

// Uint4 encodes the command: X = ops | meshBones<<8, Y = mesh descriptor, Z = source, W = destination.
func (c SkinningStreamMeshCommand) Uint4() broker.Uint4 {
	return broker.Uint4{uint32(c.Ops) | c.MeshBoneCount<<8, c.MeshIndex, c.SrcOffset, c.DstOffset}
}

// DecodeMeshCommand is the inverse of SkinningStreamMeshCommand.Uint4.
func DecodeMeshCommand(v broker.Uint4) SkinningStreamMeshCommand {
	return SkinningStreamMeshCommand{
		Ops:           Op(v[0] & 0xFF),
		MeshBoneCount: v[0] >> 8,
		MeshIndex:     v[1],
		SrcOffset:     v[2],
		DstOffset:     v[3],
	}
}
