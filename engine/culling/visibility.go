// Package culling decides which entities of a chunk survive a camera or shadow view.
//
// Visibility is tracked with three masks per chunk: the camera mask (this pass),
// the frame mask (everything already handled since the camera became active) and
// the dispatch mask (the union across all cameras this frame). Culling clears bits
// of the camera mask; PropagateVisibility then merges it into the other two.
package culling

import "github.com/Carmen-Shannon/oxy-dispatch/common"

// PropagateVisibility merges the per-camera masks into the per-frame and per-dispatch
// masks and returns the bits that still need processing in this pass.
// frame and dispatch must be at least as long as camera; they are only ever OR-ed into,
// so a frame mask can never lose a bit here.
//
// Parameters:
//   - camera: per-chunk visibility of the current camera pass
//   - frame: per-chunk masks already processed this frame (updated in place)
//   - dispatch: per-chunk union across cameras (updated in place)
//
// Returns:
//   - []common.Mask128: camera &^ frame (before the update), one entry per chunk
func PropagateVisibility(camera, frame, dispatch []common.Mask128) []common.Mask128 {
	needs := make([]common.Mask128, len(camera))
	for i, cam := range camera {
		needs[i] = cam.AndNot(frame[i])
		frame[i] = frame[i].Or(cam)
		dispatch[i] = dispatch[i].Or(cam)
	}
	return needs
}

// ResetFrame clears the per-frame masks. Called when a camera becomes active.
func ResetFrame(frame []common.Mask128) {
	clear(frame)
}
