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

// Package earthengine searches Sentinel-2 scenes through the Earth Engine
// REST API
package earthengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"
)

const (
	// Name is the backend name used in logs and metrics
	Name = "earthengine"
	// Collection is the harmonized Sentinel-2 top-of-atmosphere collection
	Collection = "COPERNICUS/S2_HARMONIZED"
	// Scope is the OAuth2 scope needed to list public assets
	Scope = "https://www.googleapis.com/auth/earthengine.readonly"

	publicAssetRoot       = "projects/earthengine-public/assets/"
	tileProperty          = "MGRS_TILE"
	cloudPercentProperty  = "CLOUDY_PIXEL_PERCENTAGE"
	defaultGoogleTokenURI = "https://oauth2.googleapis.com/token"
	serviceAccountKeyType = "service_account"
	userProjectHeader     = "X-Goog-User-Project"
)

// Client is a catalog.Catalog backed by Earth Engine's listImages method
type Client struct {
	BaseURL    string
	Project    string
	Collection string
	PageSize   int
	Requester  *catalog.Requester
}

// NewClient creates an Earth Engine client billed to the given project.
// The requester's HTTP client must already carry credentials; see
// NewAuthorizedHTTPClient.
func NewClient(baseURL string, project string, pageSize int, requester *catalog.Requester) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		Project:    project,
		Collection: Collection,
		PageSize:   pageSize,
		Requester:  requester,
	}
}

type serviceAccountKey struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKey   string `json:"private_key"`
	PrivateKeyID string `json:"private_key_id"`
	TokenURI     string `json:"token_uri"`
}

// NewAuthorizedHTTPClient reads a service account JSON key and returns an
// HTTP client that authenticates every request with a JWT-exchanged token
func NewAuthorizedHTTPClient(ctx context.Context, keyFile string) (*http.Client, error) {
	if keyFile == "" {
		return nil, model.Errorf(model.RemoteServiceError, "No service account key configured; set %s", util.GOOGLE_APPLICATION_CREDENTIALS)
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, model.NewError(model.RemoteServiceError, "Failed to read service account key", err)
	}
	var key serviceAccountKey
	if err = json.Unmarshal(data, &key); err != nil {
		return nil, model.NewError(model.RemoteServiceError, "Failed to parse service account key", err)
	}
	if key.Type != serviceAccountKeyType || key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, model.Errorf(model.RemoteServiceError, "%s is not a service account key", keyFile)
	}
	if key.TokenURI == "" {
		key.TokenURI = defaultGoogleTokenURI
	}

	config := &jwt.Config{
		Email:        key.ClientEmail,
		PrivateKey:   []byte(key.PrivateKey),
		PrivateKeyID: key.PrivateKeyID,
		Scopes:       []string{Scope},
		TokenURL:     key.TokenURI,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, util.HTTPClient())
	return config.Client(ctx), nil
}

// Name implements the catalog.Catalog interface
func (c *Client) Name() string {
	return Name
}

type listImagesResponse struct {
	Images        []image `json:"images"`
	NextPageToken string  `json:"nextPageToken"`
}

type image struct {
	Name       string                 `json:"name"`
	ID         string                 `json:"id"`
	StartTime  string                 `json:"startTime"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// Search implements the catalog.Catalog interface
func (c *Client) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	var (
		scenes    []model.Scene
		pageToken string
		visited   = make(map[string]bool)
	)
	for {
		pageURL, err := c.listImagesURL(query, pageToken)
		if err != nil {
			return nil, err
		}
		body, err := c.Requester.Do(ctx, func(ctx context.Context) (*http.Request, error) {
			request, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
			if err != nil {
				return nil, err
			}
			if c.Project != "" {
				request.Header.Set(userProjectHeader, c.Project)
			}
			return request, nil
		})
		if err != nil {
			return nil, err
		}

		var page listImagesResponse
		if err = json.Unmarshal(body, &page); err != nil {
			eeErr := util.Error{LogMsg: "Failed to unmarshal response from Earth Engine listImages: " + err.Error(),
				SimpleMsg: "Earth Engine returned an unexpected response for this search. See log for further details.",
				Response:  string(body),
				URL:       pageURL}
			return nil, model.NewError(model.RemoteServiceError, "", eeErr.Log(c.Requester.LogContext, ""))
		}
		for _, img := range page.Images {
			scene, err := img.toScene()
			if err != nil {
				util.LogAlert(c.Requester.LogContext, fmt.Sprintf("Skipping Earth Engine image: %v", err))
				continue
			}
			if query.Admits(scene) {
				scenes = append(scenes, scene)
			}
		}

		if page.NextPageToken == "" || visited[page.NextPageToken] {
			break
		}
		visited[page.NextPageToken] = true
		pageToken = page.NextPageToken
	}
	util.LogInfo(c.Requester.LogContext, fmt.Sprintf("Found %d scenes in %s", len(scenes), c.Collection))
	return scenes, nil
}

func (c *Client) listImagesURL(query model.Query, pageToken string) (string, error) {
	region, err := json.Marshal(geojson.NewGeometry(query.Point()))
	if err != nil {
		return "", model.NewError(model.InternalError, "Failed to encode search region", err)
	}
	values := url.Values{}
	values.Set("startTime", query.StartDate.UTC().Format(time.RFC3339))
	values.Set("endTime", query.EndDate.UTC().Format(time.RFC3339))
	values.Set("region", string(region))
	values.Set("filter", fmt.Sprintf("%s < %s", cloudPercentProperty, strconv.FormatFloat(query.MaxCloudCover, 'f', -1, 64)))
	if c.PageSize > 0 {
		values.Set("pageSize", strconv.Itoa(c.PageSize))
	}
	if pageToken != "" {
		values.Set("pageToken", pageToken)
	}
	return c.BaseURL + "/" + publicAssetRoot + c.Collection + ":listImages?" + values.Encode(), nil
}

func (img image) toScene() (model.Scene, error) {
	var scene model.Scene

	// The id is "<collection>/<system:index>"
	id := img.ID
	if id == "" {
		id = img.Name
	}
	scene.ImageID = id[strings.LastIndex(id, "/")+1:]
	if scene.ImageID == "" {
		return scene, fmt.Errorf("image has no id")
	}

	acquired, err := model.ParseCatalogTime(img.StartTime)
	if err != nil {
		return scene, fmt.Errorf("image %s has no usable startTime: %v", scene.ImageID, err)
	}
	scene.Acquired = acquired

	switch cloud := img.Properties[cloudPercentProperty].(type) {
	case float64:
		scene.CloudCover = cloud
	case string:
		if scene.CloudCover, err = strconv.ParseFloat(cloud, 64); err != nil {
			return scene, fmt.Errorf("image %s has an invalid %s: %v", scene.ImageID, cloudPercentProperty, err)
		}
	default:
		return scene, fmt.Errorf("image %s has no %s", scene.ImageID, cloudPercentProperty)
	}

	scene.TileID, _ = img.Properties[tileProperty].(string)
	if img.Geometry != nil {
		scene.Geometry = img.Geometry.Geometry()
	}
	return scene, nil
}
