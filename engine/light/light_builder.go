package light

import (
	"github.com/Carmen-Shannon/oxy-dispatch/engine/culling"
	"github.com/go-gl/mathgl/mgl32"
)

// DirectionalLightBuilderOption is a functional option for configuring a DirectionalLight.
type DirectionalLightBuilderOption func(*directionalLightImpl)

// WithDirection sets the direction the light travels. The vector is normalized.
//
// Parameters:
//   - d: the direction, from the light toward the scene
//
// Returns:
//   - DirectionalLightBuilderOption: option function to apply
func WithDirection(d mgl32.Vec3) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		l.direction = d.Normalize()
	}
}

// WithCascades sets the number of shadow cascades, clamped to [1, culling.MaxSplits].
//
// Parameters:
//   - n: the cascade count
//
// Returns:
//   - DirectionalLightBuilderOption: option function to apply
func WithCascades(n int) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		l.cascades = n
	}
}

// WithCascadeProjection sets how cascades are fitted to the camera.
// Receiver-sphere culling is only valid for culling.ProjectionStableFit.
//
// Parameters:
//   - p: the fitting mode
//
// Returns:
//   - DirectionalLightBuilderOption: option function to apply
func WithCascadeProjection(p culling.CascadeProjection) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		l.projection = p
	}
}

// WithShadowDistance sets how far from the camera shadows are cast.
func WithShadowDistance(d float32) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		if d > 0 {
			l.shadowDistance = d
		}
	}
}

// WithSplitLambda sets the blend between logarithmic (1) and uniform (0) split distances.
func WithSplitLambda(lambda float32) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		l.splitLambda = min(max(lambda, 0), 1)
	}
}

// WithShadowMapResolution sets the per-cascade shadow map size used for texel snapping.
func WithShadowMapResolution(texels int) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		if texels > 0 {
			l.resolution = texels
		}
	}
}

// WithShadowClip sets the near and far planes of every cascade's orthographic projection.
func WithShadowClip(near, far float32) DirectionalLightBuilderOption {
	return func(l *directionalLightImpl) {
		l.near, l.far = near, far
	}
}
