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

// Package stac searches Sentinel-2 scenes through a STAC API item search
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// Name is the backend name used in logs and metrics
const Name = "stac"

// Client is a catalog.Catalog backed by a STAC API
type Client struct {
	BaseURL    string
	Collection string
	PageSize   int
	Requester  *catalog.Requester
}

// NewClient creates a STAC client; the requester carries the rate limit
// and retry policy
func NewClient(baseURL string, collection string, pageSize int, requester *catalog.Requester) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Collection: collection,
		PageSize:   pageSize,
		Requester:  requester,
	}
}

// Name implements the catalog.Catalog interface
func (c *Client) Name() string {
	return Name
}

// Search implements the catalog.Catalog interface. It follows `next`
// links until the catalog stops returning them.
func (c *Client) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	request, err := c.firstPage(query)
	if err != nil {
		return nil, err
	}

	var (
		scenes  []model.Scene
		visited = make(map[string]bool)
		pages   int
	)
	for request != nil {
		if visited[request.key()] {
			util.LogAlert(c.Requester.LogContext, fmt.Sprintf("Catalog repeated page %s; stopping pagination", request.url))
			break
		}
		visited[request.key()] = true
		pages++

		body, err := c.Requester.Do(ctx, request.factory())
		if err != nil {
			return nil, err
		}
		pageScenes, next, err := c.parsePage(body, request.url, query)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, pageScenes...)

		if next == nil {
			break
		}
		if request, err = request.follow(next); err != nil {
			return nil, err
		}
	}
	util.LogInfo(c.Requester.LogContext, fmt.Sprintf("Found %d scenes in %s over %d page(s)", len(scenes), c.Collection, pages))
	return scenes, nil
}

func (c *Client) firstPage(query model.Query) (*pageRequest, error) {
	search := searchRequest{
		Collections: []string{c.Collection},
		Intersects:  geojson.NewGeometry(query.Point()),
		Datetime:    query.StartDate.UTC().Format(time.RFC3339) + "/" + query.EndDate.UTC().Format(time.RFC3339),
		Query:       map[string]map[string]float64{"eo:cloud_cover": {"lt": query.MaxCloudCover}},
		Limit:       c.PageSize,
	}
	encoded, err := json.Marshal(search)
	if err != nil {
		return nil, model.NewError(model.InternalError, "Failed to encode catalog search", err)
	}
	body := make(map[string]json.RawMessage)
	if err = json.Unmarshal(encoded, &body); err != nil {
		return nil, model.NewError(model.InternalError, "Failed to encode catalog search", err)
	}
	return &pageRequest{method: http.MethodPost, url: c.BaseURL + "/search", body: body}, nil
}

func (c *Client) parsePage(body []byte, pageURL string, query model.Query) ([]model.Scene, *link, error) {
	var page searchPage
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err == nil {
		err = json.Unmarshal(body, &page)
	}
	if err != nil {
		plErr := util.Error{LogMsg: "Failed to unmarshal response from catalog search: " + err.Error(),
			SimpleMsg: "The catalog returned an unexpected response for this search. See log for further details.",
			Response:  string(body),
			URL:       pageURL}
		return nil, nil, model.NewError(model.RemoteServiceError, "", plErr.Log(c.Requester.LogContext, ""))
	}

	scenes := make([]model.Scene, 0, len(fc.Features))
	for _, feature := range fc.Features {
		scene, err := toScene(feature)
		if err != nil {
			util.LogAlert(c.Requester.LogContext, fmt.Sprintf("Skipping catalog item: %v", err))
			continue
		}
		if !query.Admits(scene) {
			continue
		}
		scenes = append(scenes, scene)
	}
	return scenes, nextLink(page.Links), nil
}

func toScene(feature *geojson.Feature) (model.Scene, error) {
	var scene model.Scene
	switch id := feature.ID.(type) {
	case string:
		scene.ImageID = id
	case nil:
		return scene, fmt.Errorf("item has no id")
	default:
		scene.ImageID = fmt.Sprint(id)
	}

	datetime, ok := feature.Properties["datetime"].(string)
	if !ok || datetime == "" {
		datetime, _ = feature.Properties["start_datetime"].(string)
	}
	acquired, err := model.ParseCatalogTime(datetime)
	if err != nil {
		return scene, fmt.Errorf("item %s has no usable datetime: %v", scene.ImageID, err)
	}
	scene.Acquired = acquired

	cloudCover, ok := feature.Properties["eo:cloud_cover"].(float64)
	if !ok {
		return scene, fmt.Errorf("item %s has no eo:cloud_cover", scene.ImageID)
	}
	scene.CloudCover = cloudCover
	scene.TileID = TileID(feature.Properties)
	scene.Geometry = feature.Geometry
	return scene, nil
}

// TileID extracts the MGRS tile identifier from item properties, trying
// `grid:code`, `s2:mgrs_tile`, the `mgrs:` and `sentinel:` grid parts and
// `tileId` in that order. It returns "" when none is present.
func TileID(properties geojson.Properties) string {
	if code, ok := properties["grid:code"].(string); ok && strings.HasPrefix(code, "MGRS-") {
		return strings.TrimPrefix(code, "MGRS-")
	}
	if tile, ok := properties["s2:mgrs_tile"].(string); ok && tile != "" {
		return tile
	}
	for _, prefix := range []string{"mgrs:", "sentinel:"} {
		zone := properties[prefix+"utm_zone"]
		band, _ := properties[prefix+"latitude_band"].(string)
		square, _ := properties[prefix+"grid_square"].(string)
		if zone == nil || band == "" || square == "" {
			continue
		}
		switch z := zone.(type) {
		case float64:
			return fmt.Sprintf("%02d%s%s", int(z), band, square)
		case string:
			if len(z) == 1 {
				z = "0" + z
			}
			return z + band + square
		}
	}
	if tile, ok := properties["tileId"].(string); ok {
		return tile
	}
	return ""
}

func (pr pageRequest) factory() catalog.RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		var body io.Reader
		if pr.method == http.MethodPost {
			encoded, err := json.Marshal(pr.body)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(encoded)
		}
		request, err := http.NewRequestWithContext(ctx, pr.method, pr.url, body)
		if err != nil {
			return nil, err
		}
		if body != nil {
			request.Header.Set("Content-Type", "application/json")
		}
		request.Header.Set("Accept", "application/geo+json")
		return request, nil
	}
}

// follow builds the request for a `next` link, which may be relative to
// the current page
func (pr pageRequest) follow(next *link) (*pageRequest, error) {
	baseURL, err := url.Parse(pr.url)
	if err != nil {
		return nil, model.NewError(model.RemoteServiceError, fmt.Sprintf("Failed to parse %v into a URL", pr.url), err)
	}
	relative, err := url.Parse(next.Href)
	if err != nil {
		return nil, model.NewError(model.RemoteServiceError, fmt.Sprintf("Catalog returned an invalid next link %q", next.Href), err)
	}

	method := strings.ToUpper(next.Method)
	if method == "" {
		method = http.MethodGet
	}
	result := &pageRequest{method: method, url: baseURL.ResolveReference(relative).String()}
	if method == http.MethodPost {
		result.body = make(map[string]json.RawMessage)
		if next.Merge || next.Body == nil {
			for k, v := range pr.body {
				result.body[k] = v
			}
		}
		for k, v := range next.Body {
			result.body[k] = v
		}
	}
	return result, nil
}
