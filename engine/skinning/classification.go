// Package skinning compiles the skinning work of newly visible skinned meshes into
// a compact instruction stream for a compute shader. Requests are grouped by
// skeleton, split by history, sorted so that repeated bone conversions can be
// skipped, and emitted as headers and mesh commands at offsets planned by a
// single prefix sum over all skeleton chunks.
package skinning

// ChunkID identifies a mesh chunk in the classification map.
type ChunkID uint32

// DeformClassification describes which skinning outputs a chunk's archetype requires.
// It is computed upstream once per frame and treated as read-only.
type DeformClassification uint16

const (
	CurrentDeform DeformClassification = 1 << iota
	PreviousDeform
	TwoAgoDeform
	CurrentVertexMatrix
	PreviousVertexMatrix
	TwoAgoVertexMatrix
	CurrentVertexDqs
	PreviousVertexDqs
	TwoAgoVertexDqs
	LegacyLbs
	LegacyCompute
	LegacyDotsDeform
	// RequiresBlendShapes marks chunks whose deform output already holds blend-shaped
	// vertices, so skinning reads and writes the destination in place.
	RequiresBlendShapes
)

// ClassificationMap looks up the classification of every mesh chunk.
type ClassificationMap map[ChunkID]DeformClassification
