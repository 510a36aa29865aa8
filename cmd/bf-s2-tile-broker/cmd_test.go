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

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

const sampleSearchResponse = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "S2B_32TPQ_20230605_0_L1C",
     "geometry": {"type":"Polygon","coordinates":[[[9.5,44.9],[10.8,44.9],[10.8,45.9],[9.5,45.9],[9.5,44.9]]]},
     "properties": {"datetime": "2023-06-05T10:15:59Z", "eo:cloud_cover": 12.5, "grid:code": "MGRS-32TPQ"}}
  ],
  "links": []
}`

type mockSTACHandler struct{}

func (h mockSTACHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write([]byte(sampleSearchResponse))
}

var outputDir string

func TestMain(m *testing.M) {
	util.SetLogOutput(&bytes.Buffer{})
	mockSTACServer := httptest.NewServer(mockSTACHandler{})

	var err error
	if outputDir, err = os.MkdirTemp("", "bf-s2-tile-broker-"); err != nil {
		panic(err)
	}

	os.Setenv(util.CATALOG_BACKEND, "stac")
	os.Setenv(util.CATALOG_URL, mockSTACServer.URL)
	os.Setenv(util.OUTPUT_DIR, outputDir)
	os.Unsetenv(util.DATABASE_URL)
	os.Unsetenv(util.VCAP_SERVICES)
	code := m.Run()
	mockSTACServer.Close()
	os.RemoveAll(outputDir)
	os.Exit(code)
}

func serveOnce(t *testing.T, request *http.Request) *httptest.ResponseRecorder {
	responses := make(chan *httptest.ResponseRecorder, 1)
	launchServerFunc = func(portStr string, router *mux.Router) { // Mock
		response := httptest.NewRecorder()
		router.ServeHTTP(response, request)
		responses <- response
	}

	go serveAction(nil)

	select {
	case response := <-responses:
		return response
	case <-time.After(time.Second):
		assert.Fail(t, "launchServer not called within 1 second of serve()")
		return nil
	}
}

func TestServe_CallsLaunchServer(t *testing.T) {
	success := make(chan bool)
	launchServerFunc = func(portStr string, router *mux.Router) { // Mock
		success <- true
	}
	timer := time.NewTimer(1 * time.Second)

	go serveAction(nil)

	select {
	case <-success:
	case <-timer.C:
		assert.Fail(t, "launchServer not called within 1 second of serve()")
	}
}

func TestServe_HealthCheckEndpoint(t *testing.T) {
	response := serveOnce(t, httptest.NewRequest("GET", "/health", nil))

	if assert.NotNil(t, response) {
		assert.Equal(t, "OK", response.Body.String())
	}
}

func TestServe_FormEndpoint(t *testing.T) {
	response := serveOnce(t, httptest.NewRequest("GET", "/", nil))

	if assert.NotNil(t, response) {
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), `action="/process"`)
	}
}

func TestServe_ProcessEndpoint(t *testing.T) {
	form := "longitude=10&latitude=45&start_date=2023-06-01&end_date=2023-06-30&max_cloud_cover=100"
	request := httptest.NewRequest("POST", "/process", strings.NewReader(form))
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	response := serveOnce(t, request)

	if assert.NotNil(t, response) {
		assert.Equal(t, http.StatusOK, response.Code)
		var body map[string]interface{}
		assert.Nil(t, json.Unmarshal(response.Body.Bytes(), &body))
		assert.Equal(t, "32TPQ", body["mgrs_tile"])
	}
}

func TestServe_MetricsEndpoint(t *testing.T) {
	response := serveOnce(t, httptest.NewRequest("GET", "/metrics", nil))

	if assert.NotNil(t, response) {
		assert.Equal(t, http.StatusOK, response.Code)
		assert.Contains(t, response.Body.String(), "go_goroutines")
	}
}

func TestServe_UnknownBackend(t *testing.T) {
	t.Setenv(util.CATALOG_BACKEND, "landsat")
	launchServerFunc = func(portStr string, router *mux.Router) { // Mock
		assert.Fail(t, "launchServer called with an unknown backend")
	}

	err := serveAction(nil)

	assert.NotNil(t, err)
}

func TestCliApp_ExportsFlags(t *testing.T) {
	t.Setenv(util.ARCHIVE_RETENTION, "")
	app := createCliApp()
	app.Writer = io.Discard

	err := app.Run([]string{"bf-s2-tile-broker", "--archive-retention", "2h", "version"})

	assert.Nil(t, err)
	assert.Equal(t, 2*time.Hour, util.GetArchiveRetention())
}

func TestResolve_WritesArchive(t *testing.T) {
	dir := t.TempDir()
	app := createCliApp()
	var stdout bytes.Buffer
	app.Writer = &stdout

	err := app.Run([]string{"bf-s2-tile-broker", "resolve",
		"--longitude", "10", "--latitude", "45",
		"--start_date", "2023-06-01", "--end_date", "2023-06-30",
		"--max_cloud_cover", "100", "--output", dir})

	assert.Nil(t, err)
	var summary resolveSummary
	assert.Nil(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, []string{"32TPQ"}, summary.MGRSTiles)
	assert.Equal(t, filepath.Join(dir, "32TPQ.zip"), summary.Shapefile)

	reader, err := zip.OpenReader(summary.Shapefile)
	if assert.Nil(t, err) {
		defer reader.Close()
		assert.Len(t, reader.File, 4)
	}
}

func TestResolve_InvalidInput(t *testing.T) {
	app := createCliApp()
	app.Writer = io.Discard

	err := app.Run([]string{"bf-s2-tile-broker", "resolve", "--longitude", "200", "--latitude", "45",
		"--start_date", "2023-06-01", "--end_date", "2023-06-30"})

	assert.NotNil(t, err)
	_, statErr := os.Stat("32TPQ.zip")
	assert.True(t, os.IsNotExist(statErr))
}

func TestSweep_RemovesOrphans(t *testing.T) {
	orphan := filepath.Join(outputDir, uuid.NewString())
	assert.Nil(t, os.MkdirAll(orphan, 0755))
	old := time.Now().Add(-72 * time.Hour)
	assert.Nil(t, os.Chtimes(orphan, old, old))

	assert.Nil(t, sweepAction(nil))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
}
