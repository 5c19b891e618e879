package asset

import "github.com/go-gl/mathgl/mgl32"

// Material is mutable; updates rewrite the GPU-mirrored record and
// force re-emission of dependent renderables (§3).
//
// Grounded on InternalMaterial.h's field set (albedo/metRough/normal/
// emissive texture ids + base color/emissive/metallic/roughness).
type Material struct {
	ID ID

	BaseColorFactor mgl32.Vec4
	EmissiveColor   mgl32.Vec3
	EmissiveStrength float32
	MetallicFactor  float32
	RoughnessFactor float32

	// Optional texture references; NilID means absent.
	AlbedoTexture    ID
	MetalRoughTexture ID
	NormalTexture    ID
	EmissiveTexture  ID
}

// TextureIDs returns the material's 4 texture slots in the fixed
// binding order the catalogue writes bindless indices in.
func (m Material) TextureIDs() [4]ID {
	return [4]ID{m.AlbedoTexture, m.MetalRoughTexture, m.NormalTexture, m.EmissiveTexture}
}
