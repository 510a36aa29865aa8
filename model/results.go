package model

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TileRecord is one tile to be packaged: its identifier and a closed ring
// of (lon, lat) vertices. The ring is a bounding envelope, not the true
// MGRS footprint.
type TileRecord struct {
	TileID  string
	Polygon orb.Ring
	*TileSummary
	Scenes SceneList
}

// IsClosedRing reports whether a ring has at least four vertices and ends where it starts
func IsClosedRing(ring orb.Ring) bool {
	return len(ring) >= 4 && ring[0] == ring[len(ring)-1]
}

// Validate checks the tile record invariants
func (tr TileRecord) Validate() error {
	if tr.TileID == "" {
		return Errorf(InternalError, "Tile record has no tile ID")
	}
	if !IsClosedRing(tr.Polygon) {
		return Errorf(InternalError, "Polygon of tile %s is not a closed ring (%d vertices)", tr.TileID, len(tr.Polygon))
	}
	return nil
}

// GeoJSONFeature implements the GeoJSONFeatureCreator interface
func (tr TileRecord) GeoJSONFeature() (*geojson.Feature, error) {
	if err := tr.Validate(); err != nil {
		return nil, err
	}
	f := geojson.NewFeature(orb.Polygon{tr.Polygon})
	f.ID = tr.TileID
	f.Properties[TileIDAttribute] = tr.TileID
	f.Properties["footprint"] = EnvelopeFootprint
	f.Properties["envelope"] = true
	f.BBox = geojson.NewBBox(tr.Polygon.Bound())

	if tr.TileSummary != nil {
		if err := tr.TileSummary.Apply(f); err != nil {
			return nil, err
		}
	}
	if tr.Scenes != nil {
		if err := tr.Scenes.Apply(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// MultiTileResult is a container type for bundling multiple results together,
// e.g. as results from a discover endpoint
type MultiTileResult struct {
	FeatureCreators []GeoJSONFeatureCreator
}

// NewMultiTileResult wraps tile records for conversion to a feature collection
func NewMultiTileResult(records []TileRecord) MultiTileResult {
	creators := make([]GeoJSONFeatureCreator, len(records))
	for i, record := range records {
		creators[i] = record
	}
	return MultiTileResult{FeatureCreators: creators}
}

// GeoJSONFeatureCollection implements the GeoJSONFeatureCollectionCreator interface
func (result MultiTileResult) GeoJSONFeatureCollection() (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i, creator := range result.FeatureCreators {
		feature, err := creator.GeoJSONFeature()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %v", i, err)
		}
		fc.Append(feature)
	}
	return fc, nil
}
