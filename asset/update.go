package asset

// Update is the single transactional payload the catalogue consumes
// (§3 AssetUpdate, §4.6). Grounded on RenderContext.h's AssetUpdate
// struct, field for field.
type Update struct {
	AddedModels   []Model
	RemovedModels []ID

	AddedMaterials   []Material
	UpdatedMaterials []Material
	RemovedMaterials []ID

	AddedTextures   []Texture
	UpdatedTextures []Texture
	RemovedTextures []ID

	AddedAnimations   []Animation
	RemovedAnimations []ID
	UpdatedAnimators  []Animator

	AddedSkeletons   []Skeleton
	RemovedSkeletons []ID

	AddedRenderables   []Renderable
	UpdatedRenderables []Renderable
	RemovedRenderables []ID

	AddedLights   []Light
	UpdatedLights []Light
	RemovedLights []ID

	AddedTileInfos   []TileInfo
	UpdatedTileInfos []TileInfo
	RemovedTileInfos []TileIndex
}

// IsEmpty reports whether this update carries no changes at all —
// asset_update(nil) must be a no-op (§8 round-trip property).
func (u Update) IsEmpty() bool {
	return len(u.AddedModels) == 0 &&
		len(u.RemovedModels) == 0 &&
		len(u.AddedMaterials) == 0 &&
		len(u.UpdatedMaterials) == 0 &&
		len(u.RemovedMaterials) == 0 &&
		len(u.AddedTextures) == 0 &&
		len(u.UpdatedTextures) == 0 &&
		len(u.RemovedTextures) == 0 &&
		len(u.AddedAnimations) == 0 &&
		len(u.RemovedAnimations) == 0 &&
		len(u.UpdatedAnimators) == 0 &&
		len(u.AddedSkeletons) == 0 &&
		len(u.RemovedSkeletons) == 0 &&
		len(u.AddedRenderables) == 0 &&
		len(u.UpdatedRenderables) == 0 &&
		len(u.RemovedRenderables) == 0 &&
		len(u.AddedLights) == 0 &&
		len(u.UpdatedLights) == 0 &&
		len(u.RemovedLights) == 0 &&
		len(u.AddedTileInfos) == 0 &&
		len(u.UpdatedTileInfos) == 0 &&
		len(u.RemovedTileInfos) == 0
}

// Merge concatenates two updates field by field. Two consecutive
// identical updates are equivalent to applying one once only at the
// catalogue level (idempotence is the catalogue's responsibility, not
// this struct's); Merge exists for batching several logical sources
// (scene observers + pager) into one Update before calling Apply.
func (u Update) Merge(other Update) Update {
	u.AddedModels = append(u.AddedModels, other.AddedModels...)
	u.RemovedModels = append(u.RemovedModels, other.RemovedModels...)
	u.AddedMaterials = append(u.AddedMaterials, other.AddedMaterials...)
	u.UpdatedMaterials = append(u.UpdatedMaterials, other.UpdatedMaterials...)
	u.RemovedMaterials = append(u.RemovedMaterials, other.RemovedMaterials...)
	u.AddedTextures = append(u.AddedTextures, other.AddedTextures...)
	u.UpdatedTextures = append(u.UpdatedTextures, other.UpdatedTextures...)
	u.RemovedTextures = append(u.RemovedTextures, other.RemovedTextures...)
	u.AddedAnimations = append(u.AddedAnimations, other.AddedAnimations...)
	u.RemovedAnimations = append(u.RemovedAnimations, other.RemovedAnimations...)
	u.UpdatedAnimators = append(u.UpdatedAnimators, other.UpdatedAnimators...)
	u.AddedSkeletons = append(u.AddedSkeletons, other.AddedSkeletons...)
	u.RemovedSkeletons = append(u.RemovedSkeletons, other.RemovedSkeletons...)
	u.AddedRenderables = append(u.AddedRenderables, other.AddedRenderables...)
	u.UpdatedRenderables = append(u.UpdatedRenderables, other.UpdatedRenderables...)
	u.RemovedRenderables = append(u.RemovedRenderables, other.RemovedRenderables...)
	u.AddedLights = append(u.AddedLights, other.AddedLights...)
	u.UpdatedLights = append(u.UpdatedLights, other.UpdatedLights...)
	u.RemovedLights = append(u.RemovedLights, other.RemovedLights...)
	u.AddedTileInfos = append(u.AddedTileInfos, other.AddedTileInfos...)
	u.UpdatedTileInfos = append(u.UpdatedTileInfos, other.UpdatedTileInfos...)
	u.RemovedTileInfos = append(u.RemovedTileInfos, other.RemovedTileInfos...)
	return u
}
