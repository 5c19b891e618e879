package asset

// TileIndex is a pager unit: a 2D integer index of a 32m world tile
// (§3, GLOSSARY "Tile").
type TileIndex struct {
	X, Z int32
}

// TileSizeMeters is the world-space size of one tile (§4.11).
const TileSizeMeters = 32.0

// TileIndexFor computes floor(pos.xz / tile_size) for a world-space
// position (§4.11 step 1).
func TileIndexFor(x, z float32) TileIndex {
	return TileIndex{X: floorDiv(x, TileSizeMeters), Z: floorDiv(z, TileSizeMeters)}
}

func floorDiv(v, size float32) int32 {
	q := v / size
	f := int32(q)
	if q < 0 && float32(f) != q {
		f--
	}
	return f
}

// TileInfo is a tile's GPU record: its index and the DDGI atlas
// texture backing that tile, if any (§3).
type TileInfo struct {
	Index          TileIndex
	DDGIAtlasTexture ID // NilID if the tile has no baked DDGI atlas yet
}
