// Package asset defines the renderer's CPU-side data model (§3):
// opaque ids and the entity types that flow through AssetUpdate into
// the catalogue.
package asset

import "github.com/google/uuid"

// ID is the spec's opaque 128-bit identifier with a nil state.
// Grounded on mod_assets.go's AssetId(uuid.NewString()) — here backed
// directly by uuid.UUID instead of its string form, since every
// lookup in the catalogue is by value-equality, not display.
type ID uuid.UUID

// NilID is the zero/nil identifier: no asset ever has this id.
var NilID ID

// NewID mints a fresh random identifier.
func NewID() ID {
	return ID(uuid.New())
}

// IsNil reports whether this is the nil identifier.
func (id ID) IsNil() bool {
	return id == NilID
}

// String renders the id in canonical UUID form, for logging.
func (id ID) String() string {
	return uuid.UUID(id).String()
}
