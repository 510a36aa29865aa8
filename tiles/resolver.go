// Copyright 2018, RadiantBlue Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tiles turns catalog scenes into MGRS tile ids and tile footprints
package tiles

import (
	"context"
	"fmt"

	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/metrics"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// NoImagesMessage is reported when a single-tile search matches nothing
const NoImagesMessage = "No Sentinel-2 images available for the specified parameters."

// Resolution is the outcome of resolving a query: the matching scenes in
// catalog order and the tile ids selected by the mode
type Resolution struct {
	Mode    model.Mode
	Scenes  []model.Scene
	TileIDs []string
}

// Resolver resolves query points to MGRS tiles through a catalog
type Resolver struct {
	Catalog    catalog.Catalog
	LogContext util.LogContext
}

// NewResolver creates a resolver searching the given catalog
func NewResolver(c catalog.Catalog, logContext util.LogContext) *Resolver {
	if logContext == nil {
		logContext = util.NewBasicLogContext()
	}
	return &Resolver{Catalog: c, LogContext: logContext}
}

// Resolve searches the catalog and selects tiles. In SingleTile mode the
// result holds the tile of the first scene and an empty search is a
// NoDataError; in AllTiles mode it holds every distinct tile in
// first-seen order and an empty search yields zero tiles.
func (r *Resolver) Resolve(ctx context.Context, query model.Query, mode model.Mode) (*Resolution, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if mode != model.SingleTile && mode != model.AllTiles {
		return nil, model.Errorf(model.ValidationError, "Unknown mode `%s`", mode)
	}

	scenes, err := r.Catalog.Search(ctx, query)
	if err != nil {
		if model.KindOf(err) != model.RemoteServiceError {
			err = model.NewError(model.RemoteServiceError, fmt.Sprintf("Failed to search %s", r.Catalog.Name()), err)
		}
		return nil, err
	}

	resolution := &Resolution{Mode: mode, Scenes: scenes, TileIDs: []string{}}
	seen := make(map[string]bool)
	for _, scene := range scenes {
		if scene.TileID == "" {
			util.LogAlert(r.LogContext, fmt.Sprintf("Scene %s has no MGRS tile identifier; skipping it", scene.ImageID))
			continue
		}
		if seen[scene.TileID] {
			continue
		}
		seen[scene.TileID] = true
		resolution.TileIDs = append(resolution.TileIDs, scene.TileID)
		if mode == model.SingleTile {
			break
		}
	}

	if mode == model.SingleTile && len(resolution.TileIDs) == 0 {
		return nil, model.Errorf(model.NoDataError, NoImagesMessage)
	}
	metrics.TilesResolved.WithLabelValues(string(mode)).Add(float64(len(resolution.TileIDs)))
	util.LogInfo(r.LogContext, fmt.Sprintf("Resolved %d tile(s) from %d scene(s) in %s mode", len(resolution.TileIDs), len(scenes), mode))
	return resolution, nil
}
