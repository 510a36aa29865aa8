package tiles

import (
	"github.com/paulmach/orb"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// BuildPolygon returns the bounding envelope of the union of the
// footprints of every scene on the tile, as a closed 5-vertex ring
// starting at the south-west corner and running counter-clockwise.
func BuildPolygon(tileID string, scenes []model.Scene) (orb.Ring, error) {
	var (
		bound orb.Bound
		found bool
	)
	for _, scene := range scenes {
		if scene.TileID != tileID || scene.Geometry == nil {
			continue
		}
		if !found {
			bound = scene.Geometry.Bound()
			found = true
			continue
		}
		bound = bound.Union(scene.Geometry.Bound())
	}
	if !found {
		return nil, model.Errorf(model.NoDataError, "No scene geometry available for tile %s", tileID)
	}
	return bound.ToRing(), nil
}

// BuildRecords builds one tile record per tile id, in the given order.
// When more than one tile is requested, a tile with no scene geometry is
// skipped with an alert; the result is no_data only if every tile is.
func BuildRecords(logContext util.LogContext, tileIDs []string, scenes []model.Scene) ([]model.TileRecord, error) {
	records := make([]model.TileRecord, 0, len(tileIDs))
	var lastErr error
	for _, tileID := range tileIDs {
		polygon, err := BuildPolygon(tileID, scenes)
		if err != nil {
			if len(tileIDs) == 1 || !model.IsKind(err, model.NoDataError) {
				return nil, err
			}
			util.LogAlert(logContext, "Skipping tile "+tileID+": no scene has a footprint")
			lastErr = err
			continue
		}
		var tileScenes []model.Scene
		for _, scene := range scenes {
			if scene.TileID == tileID {
				tileScenes = append(tileScenes, scene)
			}
		}
		record := model.TileRecord{TileID: tileID, Polygon: polygon, TileSummary: model.NewTileSummary(tileScenes)}
		if err = record.Validate(); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if len(records) == 0 && lastErr != nil {
		return nil, model.NewError(model.NoDataError, "No scene geometry available for any matching tile", lastErr)
	}
	return records, nil
}

// RecordTileIDs lists the tile ids of the records, in order
func RecordTileIDs(records []model.TileRecord) []string {
	tileIDs := make([]string, len(records))
	for i, record := range records {
		tileIDs[i] = record.TileID
	}
	return tileIDs
}

// ListSceneMetadata lists every scene in catalog order
func ListSceneMetadata(scenes []model.Scene) []model.SceneMetadata {
	result := make([]model.SceneMetadata, len(scenes))
	for i, scene := range scenes {
		result[i] = scene.Metadata()
	}
	return result
}
