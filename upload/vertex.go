package upload

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/renderer/asset"
)

// VertexStrideBytes is the packed byte size of one asset.Vertex:
// pos(12) + normal(12) + tangent(16) + uv(8) + color(16) + joints(8) +
// weights(16). Exported so the catalogue can convert giga-buffer byte
// offsets into the vertex-element offsets GPU records carry.
const VertexStrideBytes = 12 + 12 + 16 + 8 + 16 + 8 + 16

const vertexStride = VertexStrideBytes

func vertexToBytes(v asset.Vertex) []byte {
	buf := make([]byte, 0, vertexStride)
	buf = appendF32(buf, v.Position.X())
	buf = appendF32(buf, v.Position.Y())
	buf = appendF32(buf, v.Position.Z())
	buf = appendF32(buf, v.Normal.X())
	buf = appendF32(buf, v.Normal.Y())
	buf = appendF32(buf, v.Normal.Z())
	buf = appendF32(buf, v.Tangent.X())
	buf = appendF32(buf, v.Tangent.Y())
	buf = appendF32(buf, v.Tangent.Z())
	buf = appendF32(buf, v.Tangent.W())
	buf = appendF32(buf, v.UV.X())
	buf = appendF32(buf, v.UV.Y())
	buf = appendF32(buf, v.Color.X())
	buf = appendF32(buf, v.Color.Y())
	buf = appendF32(buf, v.Color.Z())
	buf = appendF32(buf, v.Color.W())
	for _, j := range v.Joints {
		buf = appendU16(buf, uint16(j))
	}
	for _, w := range v.Weights {
		buf = appendF32(buf, w)
	}
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

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}
