package upload

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/gekko3d/renderer/asset"
)

// GenerateMips fills in a full mip chain below base, bilinear-filtering each
// level down to 1x1 (§3's textures arrive pre-transcoded but are not
// guaranteed to carry their full chain — glTF-equivalent import only
// ships the base level for anything the artist didn't author mips
// for). base.Format must be FormatRGBA8Unorm or FormatRGBA8Srgb; other
// formats are assumed block-compressed and returned unchanged, since a
// generic box filter can't operate on BC7/BC5 blocks.
func GenerateMips(base asset.MipLevel, format asset.Format) []asset.MipLevel {
	if format != asset.FormatRGBA8Unorm && format != asset.FormatRGBA8Srgb {
		return []asset.MipLevel{base}
	}

	src := &image.RGBA{
		Pix:    base.Data,
		Stride: int(base.Width) * 4,
		Rect:   image.Rect(0, 0, int(base.Width), int(base.Height)),
	}

	mips := []asset.MipLevel{base}
	w, h := int(base.Width), int(base.Height)
	prev := image.Image(src)
	for w > 1 || h > 1 {
		w = max(1, w/2)
		h = max(1, h/2)

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(dst, dst.Bounds(), prev, prev.Bounds(), draw.Over, nil)

		mips = append(mips, asset.MipLevel{
			Width:  uint32(w),
			Height: uint32(h),
			Data:   dst.Pix,
		})
		prev = dst
	}
	return mips
}
