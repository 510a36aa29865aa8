package model

// DateLayout is how acquisition dates are reported back to callers
const DateLayout = "2006-01-02"

// EnvelopeFootprint marks a tile polygon as the axis-aligned bounding envelope
// of the tile's scenes rather than its true MGRS footprint
const EnvelopeFootprint = "bounding_envelope"

// CollectionArchiveName names the archive produced when every distinct tile is packaged
const CollectionArchiveName = "mgrs_tiles"

// TileIDAttribute is the attribute column holding the tile identifier
const TileIDAttribute = "tile_id"
