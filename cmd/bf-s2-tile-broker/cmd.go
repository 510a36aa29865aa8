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
	"fmt"
	"os"

	"github.com/venicegeo/bf-s2-tile-broker/util"
	cli "gopkg.in/urfave/cli.v1"
)

// Version is the broker version, overridden at link time
var Version = "0.1.0"

// envFlag is a global flag that overrides an environment setting
type envFlag struct {
	name   string
	envVar string
	usage  string
}

var envFlags = []envFlag{
	{"port", util.PORT, "HTTP listen port (default 8080)"},
	{"catalog-backend", util.CATALOG_BACKEND, "Scene catalog: stac or earthengine"},
	{"catalog-url", util.CATALOG_URL, "Base URL of the STAC API"},
	{"catalog-collection", util.CATALOG_COLLECTION, "STAC collection to search"},
	{"catalog-timeout", util.CATALOG_TIMEOUT, "Upper bound on a single catalog search, e.g. 60s"},
	{"catalog-rate-limit", util.CATALOG_RATE_LIMIT, "Catalog requests per second"},
	{"catalog-max-retries", util.CATALOG_MAX_RETRIES, "Retries of a failed catalog request"},
	{"catalog-page-size", util.CATALOG_PAGE_SIZE, "Scenes requested per catalog page"},
	{"ee-project", util.EE_PROJECT, "Google Cloud project billed for Earth Engine requests"},
	{"ee-api-url", util.EE_API_URL, "Earth Engine REST endpoint"},
	{"credentials", util.GOOGLE_APPLICATION_CREDENTIALS, "Service account JSON key for Earth Engine"},
	{"output-dir", util.OUTPUT_DIR, "Directory generated archives are stored in"},
	{"archive-retention", util.ARCHIVE_RETENTION, "How long generated archives are kept, e.g. 24h"},
	{"archive-sweep-interval", util.ARCHIVE_SWEEP_INTERVAL, "How often expired archives are removed, e.g. 1h"},
	{"database-url", util.DATABASE_URL, "PostgreSQL connection string for the archive registry"},
}

func globalFlags() []cli.Flag {
	flags := make([]cli.Flag, 0, len(envFlags))
	for _, flag := range envFlags {
		flags = append(flags, cli.StringFlag{Name: flag.name, Usage: flag.usage, EnvVar: flag.envVar})
	}
	return flags
}

// exportFlags makes flags given on the command line visible to the util
// getters, which read the environment
func exportFlags(c *cli.Context) error {
	for _, flag := range envFlags {
		if !c.IsSet(flag.name) {
			continue
		}
		if err := os.Setenv(flag.envVar, c.String(flag.name)); err != nil {
			return fmt.Errorf("could not set %s: %v", flag.envVar, err)
		}
	}
	return nil
}

var commands = cli.Commands{
	cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Launch the bf-s2-tile-broker webserver",
		Action:  serveAction,
	},
	cli.Command{
		Name:      "resolve",
		Aliases:   []string{"r"},
		Usage:     "Resolve the MGRS tile(s) of a point once and write the zipped shapefile locally",
		ArgsUsage: " ",
		Flags:     resolveFlags,
		Action:    resolveAction,
	},
	cli.Command{
		Name:   "sweep",
		Usage:  "Remove archives older than the retention window",
		Action: sweepAction,
	},
	cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Update database schema",
		Action:  migrateDatabaseAction,
	},
	cli.Command{
		Name:    "version",
		Aliases: []string{"v"},
		Usage:   "Print the version number of the Broker CLI",
		Action:  versionAction,
	},
}

func versionAction(c *cli.Context) error {
	if c == nil {
		fmt.Println(Version)
		return nil
	}
	fmt.Fprintln(c.App.Writer, Version)
	return nil
}

func createCliApp() (app *cli.App) {
	app = cli.NewApp()
	app.Name = "bf-s2-tile-broker"
	app.Usage = "Launch a bf-s2-tile-broker process"
	app.Version = Version
	app.Flags = globalFlags()
	app.Before = exportFlags
	app.Commands = commands
	return
}
