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

package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

const footprint = `{"type":"Polygon","coordinates":[[[9.5,44.9],[10.8,44.9],[10.8,45.9],[9.5,45.9],[9.5,44.9]]]}`

const firstPage = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "S2B_32TPQ_20230605_0_L1C", "geometry": ` + footprint + `,
     "properties": {"datetime": "2023-06-05T10:15:59.024Z", "eo:cloud_cover": 12.5, "grid:code": "MGRS-32TPQ"}},
    {"type": "Feature", "id": "S2A_32TPQ_20230607_0_L1C", "geometry": ` + footprint + `,
     "properties": {"datetime": "2023-06-07T10:15:59Z", "eo:cloud_cover": 55, "grid:code": "MGRS-32TPQ"}},
    {"type": "Feature", "id": "S2A_32TPQ_BROKEN", "geometry": ` + footprint + `,
     "properties": {"eo:cloud_cover": 1}}
  ],
  "links": [
    {"rel": "self", "href": "search"},
    {"rel": "next", "href": "search", "method": "POST", "body": {"next": "page2"}, "merge": true}
  ],
  "context": {"returned": 3}
}`

const secondPage = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "S2B_32TQQ_20230610_0_L1C", "geometry": ` + footprint + `,
     "properties": {"datetime": "2023-06-10T10:15:59Z", "eo:cloud_cover": 3,
                    "mgrs:utm_zone": 32, "mgrs:latitude_band": "T", "mgrs:grid_square": "QQ"}},
    {"type": "Feature", "id": "S2B_32TQQ_20230630_0_L1C", "geometry": ` + footprint + `,
     "properties": {"datetime": "2023-06-30T00:00:00Z", "eo:cloud_cover": 3, "grid:code": "MGRS-32TQQ"}}
  ],
  "links": []
}`

var mockQuery = model.Query{
	Longitude:     10.0,
	Latitude:      45.0,
	StartDate:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	EndDate:       time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
	MaxCloudCover: 20,
}

type mockSTACHandler struct {
	mutex  sync.Mutex
	bodies []map[string]interface{}
}

func (h *mockSTACHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/search" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	raw, _ := io.ReadAll(r.Body)
	body := map[string]interface{}{}
	json.Unmarshal(raw, &body)

	h.mutex.Lock()
	h.bodies = append(h.bodies, body)
	h.mutex.Unlock()

	w.Header().Set("Content-Type", "application/geo+json")
	if body["next"] == "page2" {
		w.Write([]byte(secondPage))
		return
	}
	w.Write([]byte(firstPage))
}

func TestMain(m *testing.M) {
	util.SetLogOutput(&bytes.Buffer{})
	os.Exit(m.Run())
}

func newTestClient(url string) *Client {
	return NewClient(url+"/", "sentinel-2-l1c", 100, catalog.NewRequester(Name, nil, 0, 0))
}

func TestSearch_FollowsPagesAndFilters(t *testing.T) {
	handler := &mockSTACHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	scenes, err := newTestClient(server.URL).Search(context.Background(), mockQuery)

	assert.Nil(t, err)
	if assert.Len(t, scenes, 2) {
		assert.Equal(t, "S2B_32TPQ_20230605_0_L1C", scenes[0].ImageID)
		assert.Equal(t, "32TPQ", scenes[0].TileID)
		assert.Equal(t, 12.5, scenes[0].CloudCover)
		assert.Equal(t, "2023-06-05", scenes[0].Metadata().Date)
		assert.NotNil(t, scenes[0].Geometry)

		assert.Equal(t, "S2B_32TQQ_20230610_0_L1C", scenes[1].ImageID)
		assert.Equal(t, "32TQQ", scenes[1].TileID)
	}

	if assert.Len(t, handler.bodies, 2) {
		first := handler.bodies[0]
		assert.Equal(t, []interface{}{"sentinel-2-l1c"}, first["collections"])
		assert.Equal(t, "2023-06-01T00:00:00Z/2023-06-30T00:00:00Z", first["datetime"])
		assert.Equal(t, float64(100), first["limit"])
		assert.Equal(t, map[string]interface{}{"type": "Point", "coordinates": []interface{}{10.0, 45.0}}, first["intersects"])
		assert.Equal(t, map[string]interface{}{"eo:cloud_cover": map[string]interface{}{"lt": 20.0}}, first["query"])

		second := handler.bodies[1]
		assert.Equal(t, "page2", second["next"])
		assert.Equal(t, first["datetime"], second["datetime"], "next body was not merged into the search")
	}
}

func TestSearch_UnexpectedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Search(context.Background(), mockQuery)

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
}

func TestSearch_RejectedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Search(context.Background(), mockQuery)

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Contains(t, err.Error(), "403")
}

func TestSearch_StopsOnRepeatedPage(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"type":"FeatureCollection","features":[],"links":[{"rel":"next","href":"/search","method":"POST","merge":true}]}`))
	}))
	defer server.Close()

	scenes, err := newTestClient(server.URL).Search(context.Background(), mockQuery)

	assert.Nil(t, err)
	assert.Empty(t, scenes)
	assert.Equal(t, 1, calls)
}

func TestTileID(t *testing.T) {
	cases := []struct {
		properties geojson.Properties
		expected   string
	}{
		{geojson.Properties{"grid:code": "MGRS-32TPQ", "s2:mgrs_tile": "99XXX"}, "32TPQ"},
		{geojson.Properties{"s2:mgrs_tile": "32TPQ"}, "32TPQ"},
		{geojson.Properties{"mgrs:utm_zone": 5.0, "mgrs:latitude_band": "Q", "mgrs:grid_square": "KB"}, "05QKB"},
		{geojson.Properties{"sentinel:utm_zone": "5", "sentinel:latitude_band": "Q", "sentinel:grid_square": "KB"}, "05QKB"},
		{geojson.Properties{"tileId": "31UDQ"}, "31UDQ"},
		{geojson.Properties{"grid:code": "WRS2-123"}, ""},
		{geojson.Properties{}, ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.expected, TileID(c.properties), "%v", c.properties)
	}
}
