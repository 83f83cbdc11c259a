package light

// ShadowMapResolution is the default width and height in texels of one cascade of the
// shadow depth texture. Stable-fit cascades snap to its texel grid.
const ShadowMapResolution = 2048

// DefaultShadowDistance is how far from the camera shadows are cast, in world units.
const DefaultShadowDistance float32 = 60.0

// DefaultShadowNear is the default near plane for the directional light's
// orthographic shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane for the directional light's
// orthographic shadow projection.
const DefaultShadowFar float32 = 200.0

// DefaultCascadeCount is the number of shadow cascades when none is configured.
const DefaultCascadeCount = 4

// DefaultSplitLambda blends logarithmic (1) and uniform (0) cascade split distances.
const DefaultSplitLambda float32 = 0.75
