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
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/venicegeo/bf-s2-tile-broker/archive"
	"github.com/venicegeo/bf-s2-tile-broker/broker"
	"github.com/venicegeo/bf-s2-tile-broker/metrics"
	"github.com/venicegeo/bf-s2-tile-broker/util"
	cli "gopkg.in/urfave/cli.v1"
)

func createRouter(pipeline *broker.Pipeline) *mux.Router {
	router := broker.NewRouter(pipeline)
	router.HandleFunc("/health", func(writer http.ResponseWriter, request *http.Request) {
		writer.Write([]byte("OK"))
	})
	router.Handle("/metrics", metrics.Handler())
	router.Use(metrics.Middleware)
	return router
}

func serveAction(*cli.Context) error {
	logContext := util.NewBasicLogContext()
	ctx, stop := appContext()
	defer stop()

	pipeline, closeRegistry, err := newPipeline(ctx, logContext)
	if err != nil {
		return util.LogSimpleErr(logContext, "Failed to create the processing pipeline", err)
	}
	defer closeRegistry()

	sweeper := archive.NewSweeper(pipeline.Store, util.GetArchiveRetention(), util.GetArchiveSweepInterval())
	go sweeper.SweepOnTicker(ctx)

	launchServerFunc(util.GetPortStr(), createRouter(pipeline))
	return nil
}

var launchServerFunc = launchServer

func launchServer(portStr string, router *mux.Router) {
	server := http.Server{
		Addr:              portStr,
		Handler:           router,
		ReadHeaderTimeout: 30 * time.Second,
	}

	util.LogInfo(&util.BasicLogContext{}, "Listening on "+portStr)
	log.Fatal(server.ListenAndServe())
}
