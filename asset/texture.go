package asset

// Format enumerates the texture formats the catalogue accepts (§3).
// Basis-Universal transcode (RGBA8->BC7, RG8->BC5) happens at import
// time, before the Texture reaches the renderer; by the time a
// Texture arrives here its Format is already the on-GPU format.
type Format int

const (
	FormatRGBA8Unorm Format = iota
	FormatRGBA8Srgb
	FormatRGB8Srgb
	FormatRGB8Unorm
	FormatRG8Unorm
	FormatR8Unorm
	FormatR16Unorm
	FormatRGBA16F
	FormatBC7Srgb
	FormatBC7Unorm
	FormatBC5Unorm
)

// MipLevel is one mip's raw byte blob.
type MipLevel struct {
	Width  uint32
	Height uint32
	Data   []byte
}

// Texture is uploaded once and placed in a bindless slot (§3).
type Texture struct {
	ID ID

	Format        Format
	Width, Height uint32
	Mips          []MipLevel
	ClampToEdge   bool
}
