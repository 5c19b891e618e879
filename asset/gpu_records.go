package asset

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// GPURenderable mirrors the per-renderable record the cull pass reads
// and the indirect-draw pass indexes into (§3, §4.9). Field order
// matches the packed layout ToBytes emits; std430-style 16 byte
// alignment throughout, same convention as manager.go's scene buffer.
type GPURenderable struct {
	Transform mgl32.Mat4

	BoundsCenter mgl32.Vec3
	BoundsRadius float32

	Tint mgl32.Vec4

	ModelOffset   uint32
	NumMeshes     uint32
	SkeletonOffset uint32 // 0xFFFFFFFF if unskinned
	Visible       uint32 // 0 or 1, read by the GPU cull pass

	FirstMaterialIndex  uint32
	DynamicModelOffset  uint32 // index into the model (mesh-index) buffer of the skinned copies, or ModelOffset if static
	_pad0, _pad1        uint32
}

// ToBytes packs the record in GPU layout order.
func (r GPURenderable) ToBytes() []byte {
	buf := make([]byte, 0, 16*4+16+16+4*8)
	buf = append(buf, mat4ToBytes(r.Transform)...)
	buf = append(buf, vec3ToBytesPadded(r.BoundsCenter, r.BoundsRadius)...)
	buf = append(buf, vec4ToBytes(r.Tint)...)
	buf = appendU32(buf, r.ModelOffset)
	buf = appendU32(buf, r.NumMeshes)
	buf = appendU32(buf, r.SkeletonOffset)
	buf = appendU32(buf, r.Visible)
	buf = appendU32(buf, r.FirstMaterialIndex)
	buf = appendU32(buf, r.DynamicModelOffset)
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0)
	return buf
}

// GPUMeshInfoSize is the packed byte size of one GPUMeshInfo record.
const GPUMeshInfoSize = 16 + 16 + 16 + 8

// GPUMeshInfo mirrors one Mesh's giga-buffer placement and its BLAS
// handle, indexed by the model's mesh-table offset (§3, §4.8).
type GPUMeshInfo struct {
	AABBMin mgl32.Vec3
	_pad0   float32
	AABBMax mgl32.Vec3
	_pad1   float32

	VertexOffset uint32
	IndexOffset  uint32
	IndexCount   uint32
	_pad2        uint32

	BLASDeviceAddress uint64
}

// ToBytes packs the record in GPU layout order.
func (m GPUMeshInfo) ToBytes() []byte {
	buf := make([]byte, 0, GPUMeshInfoSize)
	buf = append(buf, vec3ToBytesPadded(m.AABBMin, 0)...)
	buf = append(buf, vec3ToBytesPadded(m.AABBMax, 0)...)
	buf = appendU32(buf, m.VertexOffset)
	buf = appendU32(buf, m.IndexOffset)
	buf = appendU32(buf, m.IndexCount)
	buf = appendU32(buf, 0)
	buf = appendU64(buf, m.BLASDeviceAddress)
	return buf
}

// NoTextureSlot marks a material texture binding or tile atlas binding
// as absent: the fragment shader falls back to a flat/white lookup.
const NoTextureSlot uint32 = 0xFFFFFFFF

// GPUMaterialSize is the packed byte size of one GPUMaterial record.
const GPUMaterialSize = 16 + 16 + 16 + 16

// GPUMaterial mirrors one Material's PBR factors and its four bindless
// texture slots (§3, §4.5). Indexed by materialSlots' dense Fixed
// allocator index, one record per live material.
type GPUMaterial struct {
	BaseColorFactor mgl32.Vec4

	EmissiveColor    mgl32.Vec3
	EmissiveStrength float32

	MetallicFactor    float32
	RoughnessFactor   float32
	AlbedoSlot        uint32
	MetalRoughSlot    uint32

	NormalSlot   uint32
	EmissiveSlot uint32
	_pad0, _pad1 uint32
}

// ToBytes packs the record in GPU layout order.
func (m GPUMaterial) ToBytes() []byte {
	buf := make([]byte, 0, GPUMaterialSize)
	buf = append(buf, vec4ToBytes(m.BaseColorFactor)...)
	buf = append(buf, vec3ToBytesPadded(m.EmissiveColor, m.EmissiveStrength)...)
	buf = appendF32(buf, m.MetallicFactor)
	buf = appendF32(buf, m.RoughnessFactor)
	buf = appendU32(buf, m.AlbedoSlot)
	buf = appendU32(buf, m.MetalRoughSlot)
	buf = appendU32(buf, m.NormalSlot)
	buf = appendU32(buf, m.EmissiveSlot)
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0)
	return buf
}

// NoShadowSlot marks a light as not currently holding a shadow-caster
// slot (§4.6 step 12's FCFS grant never reached it, or it isn't a
// shadow caster at all).
const NoShadowSlot uint32 = 0xFFFFFFFF

// GPULightSize is the packed byte size of one GPULight record.
const GPULightSize = 16 + 16 + 16

// GPULight mirrors one Light's position, color, range, and shadow-slot
// assignment (§3, §4.6 step 12). The per-face view-projection matrices
// a granted shadow slot carries are not packed into this record;
// EmitMirrors uploads them into the separate point-shadow cube mirror.
type GPULight struct {
	Position mgl32.Vec3
	Range    float32

	Color      mgl32.Vec3
	Enabled    uint32
	ShadowSlot uint32
	_pad0, _pad1, _pad2 uint32
}

// ToBytes packs the record in GPU layout order.
func (l GPULight) ToBytes() []byte {
	buf := make([]byte, 0, GPULightSize)
	buf = append(buf, vec3ToBytesPadded(l.Position, l.Range)...)
	buf = appendF32(buf, l.Color.X())
	buf = appendF32(buf, l.Color.Y())
	buf = appendF32(buf, l.Color.Z())
	buf = appendU32(buf, l.Enabled)
	buf = appendU32(buf, l.ShadowSlot)
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0)
	buf = appendU32(buf, 0)
	return buf
}

// GPUJointSize is the packed byte size of one skinning joint's matrix.
const GPUJointSize = 64

// GPUJoint is one joint's current skinning matrix, indexed by the
// skeleton's dense joint-range offset plus the joint's local index
// (§3, §4.6). Animation is out of scope, so this mirrors each joint's
// inverse bind matrix until an animation updater starts writing
// final skinning matrices into the same slot.
type GPUJoint struct {
	Matrix mgl32.Mat4
}

// ToBytes packs the record in GPU layout order.
func (j GPUJoint) ToBytes() []byte { return mat4ToBytes(j.Matrix) }

// GPUTileInfoSize is the packed byte size of one GPUTileInfo record.
const GPUTileInfoSize = 16

// GPUTileInfo mirrors one paged tile's DDGI atlas slot (§4.11, §4.12).
type GPUTileInfo struct {
	X, Z          int32
	DDGIAtlasSlot uint32
	_pad0         uint32
}

// ToBytes packs the record in GPU layout order.
func (t GPUTileInfo) ToBytes() []byte {
	buf := make([]byte, 0, GPUTileInfoSize)
	buf = appendU32(buf, uint32(t.X))
	buf = appendU32(buf, uint32(t.Z))
	buf = appendU32(buf, t.DDGIAtlasSlot)
	buf = appendU32(buf, 0)
	return buf
}

// DrawIndexedIndirectCommand mirrors the standard
// VkDrawIndexedIndirectCommand / wgpu DrawIndexedIndirect layout, plus
// a renderable index carried alongside so the vertex shader can fetch
// its GPURenderable without a second indirection buffer (§4.9 "GPU
// driven culling and indirect draw").
type DrawIndexedIndirectCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32

	RenderableIndex uint32
	MeshIndex       uint32
	_pad            uint32
}

// ToBytes packs the command in the layout the indirect-draw call
// expects: the first 5 words are the wire format, the trailing 3 are
// this renderer's instance-id payload consumed only by the vertex
// shader, never by the draw call itself.
func (c DrawIndexedIndirectCommand) ToBytes() []byte {
	buf := make([]byte, 0, 8*4)
	buf = appendU32(buf, c.IndexCount)
	buf = appendU32(buf, c.InstanceCount)
	buf = appendU32(buf, c.FirstIndex)
	buf = appendU32(buf, uint32(c.VertexOffset))
	buf = appendU32(buf, c.FirstInstance)
	buf = appendU32(buf, c.RenderableIndex)
	buf = appendU32(buf, c.MeshIndex)
	buf = appendU32(buf, 0)
	return buf
}

// SceneDataSize is the packed byte size of one SceneData record: 5
// mat4 (320) + 3 padded vec3s (48) + 8 trailing u32/f32 fields (32).
const SceneDataSize = 5*64 + 3*16 + 8*4

// SceneData is the per-frame UBO every pass binds at set 0 (§4.7,
// §4.10). Grounded on manager.go's UpdateCamera packing, extended
// with the shadow/DDGI/bake fields the distilled spec's frame graph
// passes need.
type SceneData struct {
	View        mgl32.Mat4
	Proj        mgl32.Mat4
	InvView     mgl32.Mat4
	InvProj     mgl32.Mat4
	SunViewProj mgl32.Mat4

	CameraPos mgl32.Vec3
	Time      float32

	GridPos   mgl32.Vec3
	DeltaTime float32

	SunDirection mgl32.Vec3
	SunIntensity float32

	ScreenWidth, ScreenHeight uint32
	FeatureFlags              uint32
	Exposure                  float32

	SkyIntensity float32
	BakeTileX    int32
	BakeTileZ    int32
	BakeActive   uint32
}

// Feature flag bits packed into SceneData.FeatureFlags (§6: a plain
// integer bitmask in the scene UBO, never a language-level enum).
const (
	FeatureSSAO uint32 = 1 << iota
	FeatureFXAA
	FeatureShadows
	FeatureRTShadows
	FeatureDDGI
	FeatureDDGIMultiBounce
	FeatureSpecularGI
	FeatureSSProbes
	FeatureBoundsVis
	FeatureHack
	FeatureRTOn
	FeatureBakeMode
	FeatureTAA
	FeatureBloom
)

// ToBytes packs the UBO in GPU layout order.
func (s SceneData) ToBytes() []byte {
	buf := make([]byte, 0, 5*64+16*4)
	buf = append(buf, mat4ToBytes(s.View)...)
	buf = append(buf, mat4ToBytes(s.Proj)...)
	buf = append(buf, mat4ToBytes(s.InvView)...)
	buf = append(buf, mat4ToBytes(s.InvProj)...)
	buf = append(buf, mat4ToBytes(s.SunViewProj)...)
	buf = append(buf, vec3ToBytesPadded(s.CameraPos, s.Time)...)
	buf = append(buf, vec3ToBytesPadded(s.GridPos, s.DeltaTime)...)
	buf = append(buf, vec3ToBytesPadded(s.SunDirection, s.SunIntensity)...)
	buf = appendU32(buf, s.ScreenWidth)
	buf = appendU32(buf, s.ScreenHeight)
	buf = appendU32(buf, s.FeatureFlags)
	buf = appendF32(buf, s.Exposure)
	buf = appendF32(buf, s.SkyIntensity)
	buf = appendU32(buf, uint32(s.BakeTileX))
	buf = appendU32(buf, uint32(s.BakeTileZ))
	buf = appendU32(buf, s.BakeActive)
	return buf
}

func mat4ToBytes(m mgl32.Mat4) []byte {
	buf := make([]byte, 0, 64)
	for _, f := range m {
		buf = appendF32(buf, f)
	}
	return buf
}

func vec4ToBytes(v mgl32.Vec4) []byte {
	buf := make([]byte, 0, 16)
	buf = appendF32(buf, v.X())
	buf = appendF32(buf, v.Y())
	buf = appendF32(buf, v.Z())
	buf = appendF32(buf, v.W())
	return buf
}

// vec3ToBytesPadded packs a vec3 plus a trailing scalar into the 16
// bytes a std430 vec3 actually occupies, same trick manager.go uses
// for camera position + padding.
func vec3ToBytesPadded(v mgl32.Vec3, w float32) []byte {
	buf := make([]byte, 0, 16)
	buf = appendF32(buf, v.X())
	buf = appendF32(buf, v.Y())
	buf = appendF32(buf, v.Z())
	buf = appendF32(buf, w)
	return buf
}

func appendF32(buf []byte, f float32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}
