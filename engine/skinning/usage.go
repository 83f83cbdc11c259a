package skinning

// History selects which transform snapshot a request skins with.
type History uint8

const (
	HistoryCurrent History = iota
	HistoryPrevious
	HistoryTwoAgo
)

// HistoryCount is the number of transform snapshots kept per skeleton.
const HistoryCount = 3

// Kind is the output a request produces.
type Kind uint8

const (
	// KindVertexMatrix stores skinning matrices for vertex-shader skinning.
	KindVertexMatrix Kind = iota + 1
	// KindVertexDqs stores dual quaternions for vertex-shader skinning.
	KindVertexDqs
	// KindDeform skins vertices in compute and writes them to the deform buffer.
	KindDeform
)

// ShaderUsage packs a request's output property into one byte:
// bits 0-1 history, bits 2-3 kind, bit 4 legacy layout, bit 5 in-place.
type ShaderUsage uint8

const (
	usageHistoryMask ShaderUsage = 0b11
	usageKindShift               = 2
	usageKindMask    ShaderUsage = 0b11 << usageKindShift
	usageLegacy      ShaderUsage = 1 << 4
	usageInPlace     ShaderUsage = 1 << 5
)

// NewShaderUsage builds a usage.
//
// Parameters:
//   - kind: the output kind
//   - history: the transform snapshot
//   - legacy: whether the legacy output layout is used
//   - inPlace: whether skinning writes over the destination's existing vertices
//
// Returns:
//   - ShaderUsage: the packed usage
func NewShaderUsage(kind Kind, history History, legacy, inPlace bool) ShaderUsage {
	u := ShaderUsage(history)&usageHistoryMask | ShaderUsage(kind)<<usageKindShift&usageKindMask
	if legacy {
		u |= usageLegacy
	}
	if inPlace {
		u |= usageInPlace
	}
	return u
}

func (u ShaderUsage) History() History { return History(u & usageHistoryMask) }
func (u ShaderUsage) Kind() Kind       { return Kind((u & usageKindMask) >> usageKindShift) }
func (u ShaderUsage) Legacy() bool     { return u&usageLegacy != 0 }
func (u ShaderUsage) InPlace() bool    { return u&usageInPlace != 0 }

// IsVertex reports whether the usage stores transforms for vertex-shader skinning.
func (u ShaderUsage) IsVertex() bool { return u.Kind() != KindDeform }

// Dqs reports whether the usage converts bones to dual quaternions.
func (u ShaderUsage) Dqs() bool { return u.Kind() == KindVertexDqs }

// category groups usages that share a bone conversion: matrix (0) or dual quaternion (1).
func (u ShaderUsage) category() int {
	if u.Dqs() {
		return 1
	}
	return 0
}

// modern strips the legacy bit, which does not change the slot a usage writes to.
func (u ShaderUsage) modern() ShaderUsage { return u &^ usageLegacy }

// MaxUsagesPerMesh is the largest number of requests one mesh can produce.
const MaxUsagesPerMesh = HistoryCount * 3

var classificationUsages = [...]struct {
	bit     DeformClassification
	kind    Kind
	history History
	legacy  bool
}{
	{CurrentDeform, KindDeform, HistoryCurrent, false},
	{PreviousDeform, KindDeform, HistoryPrevious, false},
	{TwoAgoDeform, KindDeform, HistoryTwoAgo, false},
	{CurrentVertexMatrix, KindVertexMatrix, HistoryCurrent, false},
	{PreviousVertexMatrix, KindVertexMatrix, HistoryPrevious, false},
	{TwoAgoVertexMatrix, KindVertexMatrix, HistoryTwoAgo, false},
	{CurrentVertexDqs, KindVertexDqs, HistoryCurrent, false},
	{PreviousVertexDqs, KindVertexDqs, HistoryPrevious, false},
	{TwoAgoVertexDqs, KindVertexDqs, HistoryTwoAgo, false},
	{LegacyLbs, KindVertexMatrix, HistoryCurrent, true},
	{LegacyCompute, KindDeform, HistoryCurrent, true},
	{LegacyDotsDeform, KindDeform, HistoryCurrent, true},
}

// UsagesFor expands a classification into the distinct usages it requires. Legacy bits fold
// into the matching modern usage, so the result never holds more than MaxUsagesPerMesh entries.
//
// Parameters:
//   - c: the chunk classification
//
// Returns:
//   - []ShaderUsage: the usages, in classification bit order
func UsagesFor(c DeformClassification) []ShaderUsage {
	inPlace := c&RequiresBlendShapes != 0
	out := make([]ShaderUsage, 0, MaxUsagesPerMesh)
	for _, cu := range classificationUsages {
		if c&cu.bit == 0 {
			continue
		}
		u := NewShaderUsage(cu.kind, cu.history, cu.legacy, inPlace && cu.kind == KindDeform)
		merged := false
		for i := range out {
			if out[i].modern() == u.modern() {
				out[i] |= u & usageLegacy
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, u)
		}
	}
	return out
}
