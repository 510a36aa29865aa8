package model

import (
	"time"

	"github.com/paulmach/orb/geojson"
)

// TileSummary is a mixin describing the scenes a tile record was derived from
type TileSummary struct {
	SceneCount    int
	FirstAcquired time.Time
	LastAcquired  time.Time
	MinCloudCover float64
}

// NewTileSummary summarizes the given scenes; it returns nil for no scenes
func NewTileSummary(scenes []Scene) *TileSummary {
	if len(scenes) == 0 {
		return nil
	}
	summary := TileSummary{
		SceneCount:    len(scenes),
		FirstAcquired: scenes[0].Acquired,
		LastAcquired:  scenes[0].Acquired,
		MinCloudCover: scenes[0].CloudCover,
	}
	for _, scene := range scenes[1:] {
		if scene.Acquired.Before(summary.FirstAcquired) {
			summary.FirstAcquired = scene.Acquired
		}
		if scene.Acquired.After(summary.LastAcquired) {
			summary.LastAcquired = scene.Acquired
		}
		if scene.CloudCover < summary.MinCloudCover {
			summary.MinCloudCover = scene.CloudCover
		}
	}
	return &summary
}

// Apply implements the GeoJSONFeatureMixin interface
func (ts TileSummary) Apply(feature *geojson.Feature) error {
	feature.Properties["sceneCount"] = ts.SceneCount
	feature.Properties["firstAcquiredDate"] = ts.FirstAcquired.UTC().Format(DateLayout)
	feature.Properties["lastAcquiredDate"] = ts.LastAcquired.UTC().Format(DateLayout)
	feature.Properties["minCloudCover"] = ts.MinCloudCover
	return nil
}

// SceneList is a mixin listing the metadata of individual scenes
type SceneList []SceneMetadata

// Apply implements the GeoJSONFeatureMixin interface
func (sl SceneList) Apply(feature *geojson.Feature) error {
	feature.Properties["scenes"] = []SceneMetadata(sl)
	return nil
}
