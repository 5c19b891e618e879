package asset

import "github.com/go-gl/mathgl/mgl32"

// Light is a point light (§3). Shadow casters pre-compute 6 cube-face
// view matrices and a 90deg-FOV projection; FaceViewProj is filled in
// by the catalogue when ShadowCaster is true and a shadow-caster slot
// was granted.
type Light struct {
	ID ID

	Position mgl32.Vec3
	Color    mgl32.Vec3
	Range    float32
	Enabled  bool

	ShadowCaster bool
	// FaceViewProj holds the 6 cube-face view-projection matrices,
	// populated only while a shadow-caster slot is assigned.
	FaceViewProj [6]mgl32.Mat4
}
