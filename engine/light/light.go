// Package light turns a directional light and a camera into a cascaded shadow culling view.
package light

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-dispatch/engine/camera"
	"github.com/Carmen-Shannon/oxy-dispatch/engine/culling"
	"github.com/go-gl/mathgl/mgl32"
)

// directionalLightImpl is the implementation of the DirectionalLight interface.
type directionalLightImpl struct {
	mu *sync.Mutex

	direction      mgl32.Vec3
	cascades       int
	projection     culling.CascadeProjection
	shadowDistance float32
	splitLambda    float32
	resolution     int
	near, far      float32
}

// DirectionalLight is a shadow-casting light with no position. Its shadow region follows
// the camera and is split into cascades by view distance.
type DirectionalLight interface {
	// Direction returns the normalized direction the light travels.
	Direction() mgl32.Vec3

	// SetDirection sets the light direction. The vector is normalized.
	//
	// Parameters:
	//   - d: the direction, from the light toward the scene
	SetDirection(d mgl32.Vec3)

	// Cascades returns the number of shadow cascades.
	Cascades() int

	// Projection returns how cascades are fitted.
	Projection() culling.CascadeProjection

	// SplitDistances returns the view distances that bound each cascade, cascades+1 values
	// starting at the camera's near plane.
	//
	// Parameters:
	//   - cam: the camera shadows are rendered for
	//
	// Returns:
	//   - []float32: the split distances
	SplitDistances(cam camera.Camera) []float32

	// ShadowContext builds the light culling view for cam.
	//
	// Parameters:
	//   - cam: the camera whose frustum receives the shadows
	//
	// Returns:
	//   - *culling.CullingContext: the light view with one split per cascade
	//   - []mgl32.Mat4: the view-projection of each cascade
	ShadowContext(cam camera.Camera) (*culling.CullingContext, []mgl32.Mat4)
}

var _ DirectionalLight = &directionalLightImpl{}

// NewDirectionalLight creates a DirectionalLight pointing straight down with
// DefaultCascadeCount stable-fit cascades.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - DirectionalLight: the light
func NewDirectionalLight(options ...DirectionalLightBuilderOption) DirectionalLight {
	l := &directionalLightImpl{
		mu:             &sync.Mutex{},
		direction:      mgl32.Vec3{0, -1, 0},
		cascades:       DefaultCascadeCount,
		projection:     culling.ProjectionStableFit,
		shadowDistance: DefaultShadowDistance,
		splitLambda:    DefaultSplitLambda,
		resolution:     ShadowMapResolution,
		near:           DefaultShadowNear,
		far:            DefaultShadowFar,
	}
	for _, opt := range options {
		opt(l)
	}
	l.cascades = min(max(l.cascades, 1), culling.MaxSplits)
	return l
}

func (l *directionalLightImpl) Direction() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.direction
}

func (l *directionalLightImpl) SetDirection(d mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.direction = d.Normalize()
}

func (l *directionalLightImpl) Cascades() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cascades
}

func (l *directionalLightImpl) Projection() culling.CascadeProjection {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.projection
}

func (l *directionalLightImpl) SplitDistances(cam camera.Camera) []float32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.splitDistances(cam.Near(), min(cam.Far(), l.shadowDistance))
}

// splitDistances blends logarithmic and uniform splits. Caller must hold the mutex.
func (l *directionalLightImpl) splitDistances(near, far float32) []float32 {
	out := make([]float32, l.cascades+1)
	for i := range out {
		f := float64(i) / float64(l.cascades)
		logSplit := float64(near) * math.Pow(float64(far/near), f)
		uniform := float64(near) + float64(far-near)*f
		out[i] = float32(float64(l.splitLambda)*logSplit + float64(1-l.splitLambda)*uniform)
	}
	out[0], out[l.cascades] = near, far
	return out
}

func (l *directionalLightImpl) ShadowContext(cam camera.Camera) (*culling.CullingContext, []mgl32.Mat4) {
	l.mu.Lock()
	defer l.mu.Unlock()

	splits := l.splitDistances(cam.Near(), min(cam.Far(), l.shadowDistance))
	planes := make([]culling.SplitPlanes, 0, l.cascades)
	matrices := make([]mgl32.Mat4, 0, l.cascades)
	for i := range l.cascades {
		corners := cam.SliceCorners(splits[i], splits[i+1])
		center, halfExtent := l.fit(corners)
		split, vp := culling.SplitFromOrtho(l.direction, center, halfExtent, l.near, l.far)
		planes = append(planes, split)
		matrices = append(matrices, vp)
	}

	f := cam.Frustum()
	return culling.NewShadowContext(l.direction, f.Slice(), planes, l.projection), matrices
}

// fit returns the center and orthographic half-extent of one cascade.
// Stable fit uses the slice's bounding sphere with its center snapped to the shadow map
// texel grid in light space. Close fit uses the tightest square around the corners in light space.
func (l *directionalLightImpl) fit(corners [8]mgl32.Vec3) (mgl32.Vec3, float32) {
	var center mgl32.Vec3
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / 8)

	right, up := lightBasis(l.direction)
	if l.projection == culling.ProjectionCloseFit {
		var halfExtent float32
		for _, c := range corners {
			d := c.Sub(center)
			halfExtent = max(halfExtent, abs32(d.Dot(right)), abs32(d.Dot(up)))
		}
		return center, halfExtent
	}

	var radius float32
	for _, c := range corners {
		radius = max(radius, c.Sub(center).Len())
	}
	radius = float32(math.Ceil(float64(radius)*16) / 16)

	texel := 2 * radius / float32(l.resolution)
	snap := func(v float32) float32 { return float32(math.Floor(float64(v/texel))) * texel }
	along := center.Dot(l.direction)
	center = right.Mul(snap(center.Dot(right))).
		Add(up.Mul(snap(center.Dot(up)))).
		Add(l.direction.Mul(along))
	return center, radius
}

// lightBasis returns two unit vectors orthogonal to dir and to each other.
func lightBasis(dir mgl32.Vec3) (right, up mgl32.Vec3) {
	ref := mgl32.Vec3{0, 1, 0}
	if abs32(dir[1]) > 0.99 {
		ref = mgl32.Vec3{1, 0, 0}
	}
	right = ref.Cross(dir).Normalize()
	up = dir.Cross(right)
	return right, up
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
