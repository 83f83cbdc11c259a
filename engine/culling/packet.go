package culling

import (
	"math"

	"github.com/Carmen-Shannon/oxy-dispatch/common"
)

// PlanePacket4 stores four planes in structure-of-arrays form so that one AABB
// can be tested against all four in a single pass over each lane array.
type PlanePacket4 struct {
	Xs, Ys, Zs, Distances [4]float32
}

// BuildPackets packs planes four at a time. The unused lanes of the last packet hold a
// degenerate plane that every point is inside of.
//
// Parameters:
//   - planes: the planes to pack
//
// Returns:
//   - []PlanePacket4: ceil(len(planes)/4) packets
func BuildPackets(planes []common.Plane) []PlanePacket4 {
	packets := make([]PlanePacket4, common.CeilDiv(len(planes), 4))
	for i := range packets {
		for lane := range 4 {
			pi := i*4 + lane
			if pi >= len(planes) {
				packets[i].Distances[lane] = math.MaxFloat32
				continue
			}
			p := planes[pi]
			packets[i].Xs[lane] = p.Normal[0]
			packets[i].Ys[lane] = p.Normal[1]
			packets[i].Zs[lane] = p.Normal[2]
			packets[i].Distances[lane] = p.Distance
		}
	}
	return packets
}

// IntersectAABB classifies box against every packet.
//
// Parameters:
//   - packets: the plane packets
//   - box: the box to classify
//
// Returns:
//   - common.IntersectResult: Out if the box is fully outside any plane, In if fully inside all, otherwise Partial
func IntersectAABB(packets []PlanePacket4, box common.AABB) common.IntersectResult {
	c, e := box.Center, box.Extents
	var outside, partial bool
	for i := range packets {
		p := &packets[i]
		for lane := range 4 {
			dist := p.Xs[lane]*c[0] + p.Ys[lane]*c[1] + p.Zs[lane]*c[2] + p.Distances[lane]
			radius := abs32(p.Xs[lane])*e[0] + abs32(p.Ys[lane])*e[1] + abs32(p.Zs[lane])*e[2]
			outside = outside || dist+radius < 0
			partial = partial || dist-radius < 0
		}
		if outside {
			return common.Out
		}
	}
	if partial {
		return common.Partial
	}
	return common.In
}

// IntersectsAABB reports whether box is at least partially inside every packet.
// Entity-level tests only need this, so the partial bookkeeping is skipped.
func IntersectsAABB(packets []PlanePacket4, box common.AABB) bool {
	c, e := box.Center, box.Extents
	for i := range packets {
		p := &packets[i]
		var out bool
		for lane := range 4 {
			dist := p.Xs[lane]*c[0] + p.Ys[lane]*c[1] + p.Zs[lane]*c[2] + p.Distances[lane]
			radius := abs32(p.Xs[lane])*e[0] + abs32(p.Ys[lane])*e[1] + abs32(p.Zs[lane])*e[2]
			out = out || dist+radius < 0
		}
		if out {
			return false
		}
	}
	return true
}
