// Package pager implements tile-based scene paging: each frame it
// computes the camera's current tile and diffs the page window around
// it against the previous frame's window, producing an asset.Update
// that pages newly-visible tiles in and pages stale ones out.
//
// Grounded on original_source's ScenePager.h/.cpp, ported into the Go
// idiom: no entt registry, so the node/dirty/terrain bookkeeping
// ScenePager reached into the ECS for is modelled as a small
// SceneQuery interface the caller (the out-of-scope scene authoring
// layer) implements.
package pager

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/asset"
)

// DefaultPageRadius mirrors ScenePager's _pageRadius default of 10
// tiles.
const DefaultPageRadius = 10

// SceneQuery is the scene-authoring layer's read interface: the pager
// never mutates scene nodes itself, it only asks what is in a tile and
// forwards paging decisions as an asset.Update.
type SceneQuery interface {
	// NodesInTile returns every scene node currently assigned to tile.
	NodesInTile(tile asset.TileIndex) []asset.ID
	// IsDirty reports whether node's tile membership or content changed
	// since the last Update call.
	IsDirty(node asset.ID) bool
	// IsTerrain reports whether node is a terrain node: terrain is
	// always force-paged regardless of PageStatus (§4.11 step 4).
	IsTerrain(node asset.ID) bool
	// HasPageStatus reports whether node already carries a PageStatus
	// component (has been seen by the pager before).
	HasPageStatus(node asset.ID) bool
	// RenderableFor returns the Renderable a paged node contributes, if
	// any (terrain nodes and pure-logic nodes may have none).
	RenderableFor(node asset.ID) (asset.Renderable, bool)
}

// Pager tracks the previously-paged tile set and emits an asset.Update
// each frame describing what changed.
type Pager struct {
	query      SceneQuery
	pageRadius int
	pagedTiles map[asset.TileIndex]bool
}

// New creates a pager with the default page radius.
func New(query SceneQuery) *Pager {
	return &Pager{
		query:      query,
		pageRadius: DefaultPageRadius,
		pagedTiles: make(map[asset.TileIndex]bool),
	}
}

// SetPageRadius overrides the default window radius (in tiles).
func (p *Pager) SetPageRadius(r int) { p.pageRadius = r }

// Update recomputes the page window around camPos and returns the
// asset.Update describing what should be added/removed (§4.11).
func (p *Pager) Update(camPos mgl32.Vec3) asset.Update {
	center := tileIndexFor(camPos)
	window := tileWindow(center, p.pageRadius)

	var out asset.Update
	newPaged := make(map[asset.TileIndex]bool, len(window))

	for _, tile := range window {
		newPaged[tile] = true
		wasPaged := p.pagedTiles[tile]

		if !wasPaged {
			p.pageAll(tile, &out)
			out.AddedTileInfos = append(out.AddedTileInfos, asset.TileInfo{Index: tile})
			continue
		}
		// Previously paged: diff the dirty node set only.
		for _, node := range p.query.NodesInTile(tile) {
			if !p.query.IsDirty(node) {
				continue
			}
			if p.query.HasPageStatus(node) {
				if r, ok := p.query.RenderableFor(node); ok {
					out.UpdatedRenderables = append(out.UpdatedRenderables, r)
				}
			} else {
				p.pageNode(node, &out)
			}
		}
	}

	// Tiles that were paged last frame but fell outside the new window:
	// unpage their non-terrain nodes, keep terrain force-paged.
	for tile := range p.pagedTiles {
		if newPaged[tile] {
			continue
		}
		for _, node := range p.query.NodesInTile(tile) {
			if p.query.IsTerrain(node) {
				continue
			}
			out.RemovedRenderables = append(out.RemovedRenderables, node)
		}
		out.RemovedTileInfos = append(out.RemovedTileInfos, tile)
	}

	// Terrain nodes missing PageStatus in any window tile are
	// force-paged, even in tiles already paged and with no dirty mark
	// (§4.11 step 4).
	for tile := range newPaged {
		for _, node := range p.query.NodesInTile(tile) {
			if p.query.IsTerrain(node) && !p.query.HasPageStatus(node) {
				p.pageNode(node, &out)
			}
		}
	}

	p.pagedTiles = newPaged
	return out
}

func (p *Pager) pageAll(tile asset.TileIndex, out *asset.Update) {
	for _, node := range p.query.NodesInTile(tile) {
		p.pageNode(node, out)
	}
}

func (p *Pager) pageNode(node asset.ID, out *asset.Update) {
	if r, ok := p.query.RenderableFor(node); ok {
		out.AddedRenderables = append(out.AddedRenderables, r)
	}
}

// tileIndexFor computes floor(pos.xz / tile_size), §4.11 step 1.
func tileIndexFor(pos mgl32.Vec3) asset.TileIndex {
	return asset.TileIndexFor(pos.X(), pos.Z())
}

// tileWindow enumerates every tile in the (2*radius+1)^2 square
// centered on center.
func tileWindow(center asset.TileIndex, radius int) []asset.TileIndex {
	tiles := make([]asset.TileIndex, 0, (2*radius+1)*(2*radius+1))
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			tiles = append(tiles, asset.TileIndex{X: center.X + int32(dx), Z: center.Z + int32(dz)})
		}
	}
	return tiles
}
