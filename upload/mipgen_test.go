package upload

import (
	"testing"

	"github.com/gekko3d/renderer/asset"
)

func TestGenerateMipsProducesFullChainDownToOneByOne(t *testing.T) {
	base := asset.MipLevel{Width: 8, Height: 4, Data: make([]byte, 8*4*4)}
	mips := GenerateMips(base, asset.FormatRGBA8Unorm)

	// 8x4 -> 4x2 -> 2x1 -> 1x1
	if len(mips) != 4 {
		t.Fatalf("expected 4 mip levels, got %d", len(mips))
	}
	last := mips[len(mips)-1]
	if last.Width != 1 || last.Height != 1 {
		t.Fatalf("expected chain to bottom out at 1x1, got %dx%d", last.Width, last.Height)
	}
	if len(last.Data) != 4 {
		t.Fatalf("expected 1x1 RGBA level to be 4 bytes, got %d", len(last.Data))
	}
}

func TestGenerateMipsLeavesCompressedFormatsUntouched(t *testing.T) {
	base := asset.MipLevel{Width: 8, Height: 8, Data: make([]byte, 32)}
	mips := GenerateMips(base, asset.FormatBC7Unorm)
	if len(mips) != 1 {
		t.Fatalf("expected block-compressed input to pass through unchanged, got %d levels", len(mips))
	}
}
