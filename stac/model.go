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
	"encoding/json"

	"github.com/paulmach/orb/geojson"
)

// searchRequest is the body of a STAC API item search
type searchRequest struct {
	Collections []string                      `json:"collections"`
	Intersects  *geojson.Geometry             `json:"intersects"`
	Datetime    string                        `json:"datetime"`
	Query       map[string]map[string]float64 `json:"query,omitempty"`
	Limit       int                           `json:"limit,omitempty"`
}

// searchPage carries the non-GeoJSON members of a search response page
type searchPage struct {
	Links   []link       `json:"links"`
	Context *pageContext `json:"context,omitempty"`
}

type pageContext struct {
	Returned int  `json:"returned"`
	Matched  *int `json:"matched,omitempty"`
}

// link is a STAC link object. Paging links of POST searches carry the
// request body of the next page and whether it merges into the previous one.
type link struct {
	Rel    string                     `json:"rel"`
	Href   string                     `json:"href"`
	Method string                     `json:"method,omitempty"`
	Body   map[string]json.RawMessage `json:"body,omitempty"`
	Merge  bool                       `json:"merge,omitempty"`
}

// pageRequest is one request of a paged search
type pageRequest struct {
	method string
	url    string
	body   map[string]json.RawMessage
}

func (pr pageRequest) key() string {
	body, _ := json.Marshal(pr.body)
	return pr.method + " " + pr.url + " " + string(body)
}

func nextLink(links []link) *link {
	for i := range links {
		if links[i].Rel == "next" && links[i].Href != "" {
			return &links[i]
		}
	}
	return nil
}
