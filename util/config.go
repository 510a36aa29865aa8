// Copyright 2016, RadiantBlue Technologies, Inc.
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

package util

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables
const (
	PORT                           = "PORT"
	CATALOG_BACKEND                = "CATALOG_BACKEND"
	CATALOG_URL                    = "CATALOG_URL"
	CATALOG_COLLECTION             = "CATALOG_COLLECTION"
	CATALOG_TIMEOUT                = "CATALOG_TIMEOUT"
	CATALOG_RATE_LIMIT             = "CATALOG_RATE_LIMIT"
	CATALOG_MAX_RETRIES            = "CATALOG_MAX_RETRIES"
	CATALOG_PAGE_SIZE              = "CATALOG_PAGE_SIZE"
	EE_PROJECT                     = "EE_PROJECT"
	EE_API_URL                     = "EE_API_URL"
	GOOGLE_APPLICATION_CREDENTIALS = "GOOGLE_APPLICATION_CREDENTIALS"
	OUTPUT_DIR                     = "OUTPUT_DIR"
	ARCHIVE_RETENTION              = "ARCHIVE_RETENTION"
	ARCHIVE_SWEEP_INTERVAL         = "ARCHIVE_SWEEP_INTERVAL"
)

// Defaults for the settings above
const (
	DefaultPort                 = "8080"
	DefaultCatalogBackend       = "stac"
	DefaultCatalogURL           = "https://earth-search.aws.element84.com/v1"
	DefaultCatalogCollection    = "sentinel-2-l1c"
	DefaultCatalogTimeout       = 60 * time.Second
	DefaultCatalogRateLimit     = 5.0
	DefaultCatalogMaxRetries    = 3
	DefaultCatalogPageSize      = 100
	DefaultEarthEngineAPIURL    = "https://earthengine.googleapis.com/v1"
	DefaultOutputDir            = "./downloads"
	DefaultArchiveRetention     = 24 * time.Hour
	DefaultArchiveSweepInterval = time.Hour
)

// GetPortStr returns the listen address for the PORT environment variable
func GetPortStr() string {
	if port, ok := os.LookupEnv(PORT); ok && port != "" {
		return ":" + port
	}
	return ":" + DefaultPort
}

// GetCatalogBackend returns the name of the catalog implementation to use
func GetCatalogBackend() string {
	return stringEnv(CATALOG_BACKEND, DefaultCatalogBackend)
}

// GetCatalogURL returns the base URL of the STAC catalog API
func GetCatalogURL() string {
	catalogURL, ok := os.LookupEnv(CATALOG_URL)
	if !ok || catalogURL == "" {
		LogInfo(&BasicLogContext{}, "Did not get a catalog URL from the environment. Using default: "+DefaultCatalogURL)
		return DefaultCatalogURL
	}
	return catalogURL
}

// GetCatalogCollection returns the catalog collection searched for scenes
func GetCatalogCollection() string {
	return stringEnv(CATALOG_COLLECTION, DefaultCatalogCollection)
}

// GetCatalogTimeout returns the upper bound on a single catalog search
func GetCatalogTimeout() time.Duration {
	return durationEnv(CATALOG_TIMEOUT, DefaultCatalogTimeout)
}

// GetCatalogRateLimit returns the permitted catalog requests per second
func GetCatalogRateLimit() float64 {
	raw := os.Getenv(CATALOG_RATE_LIMIT)
	if raw == "" {
		return DefaultCatalogRateLimit
	}
	limit, err := strconv.ParseFloat(raw, 64)
	if err != nil || limit <= 0 {
		LogAlert(&BasicLogContext{}, fmt.Sprintf("Invalid %s value %q. Using default.", CATALOG_RATE_LIMIT, raw))
		return DefaultCatalogRateLimit
	}
	return limit
}

// GetCatalogMaxRetries returns how many times a failed catalog call is tried
func GetCatalogMaxRetries() int {
	return intEnv(CATALOG_MAX_RETRIES, DefaultCatalogMaxRetries)
}

// GetCatalogPageSize returns the page size requested from the catalog
func GetCatalogPageSize() int {
	return intEnv(CATALOG_PAGE_SIZE, DefaultCatalogPageSize)
}

// GetEarthEngineProject returns the Google Cloud project used for Earth Engine
func GetEarthEngineProject() string {
	project, ok := os.LookupEnv(EE_PROJECT)
	if !ok {
		LogAlert(&BasicLogContext{}, "Did not get an Earth Engine project from the environment. Earth Engine will not be available.")
	}
	return project
}

// GetEarthEngineAPIURL returns the Earth Engine REST endpoint
func GetEarthEngineAPIURL() string {
	return stringEnv(EE_API_URL, DefaultEarthEngineAPIURL)
}

// GetCredentialsFile returns the path of the service account JSON key
func GetCredentialsFile() string {
	return os.Getenv(GOOGLE_APPLICATION_CREDENTIALS)
}

// GetOutputDir returns the directory generated archives are kept in
func GetOutputDir() string {
	return stringEnv(OUTPUT_DIR, DefaultOutputDir)
}

// GetArchiveRetention returns how long generated archives are kept
func GetArchiveRetention() time.Duration {
	return durationEnv(ARCHIVE_RETENTION, DefaultArchiveRetention)
}

// GetArchiveSweepInterval returns how often expired archives are removed
func GetArchiveSweepInterval() time.Duration {
	return durationEnv(ARCHIVE_SWEEP_INTERVAL, DefaultArchiveSweepInterval)
}

func stringEnv(name string, def string) string {
	if value, ok := os.LookupEnv(name); ok && value != "" {
		return value
	}
	return def
}

func intEnv(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		LogAlert(&BasicLogContext{}, fmt.Sprintf("Invalid %s value %q. Using default.", name, raw))
		return def
	}
	return value
}

func durationEnv(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	duration, err := time.ParseDuration(raw)
	if err != nil || duration <= 0 {
		LogAlert(&BasicLogContext{}, fmt.Sprintf("Invalid %s value %q. Using default.", name, raw))
		return def
	}
	return duration
}
