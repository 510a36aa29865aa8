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

// Package broker serves the tile broker's HTTP surface: the input form,
// the processing endpoints, archive downloads and tile discovery
package broker

import (
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// Context is the context for a broker operation. Handlers copy it for
// every request so that each request logs under its own session id.
type Context struct {
	Pipeline  *Pipeline
	sessionID string
}

// AppName returns the application name
func (c *Context) AppName() string {
	return util.AppName
}

// SessionID returns a Session ID, creating one if needed
func (c *Context) SessionID() string {
	if c.sessionID == "" {
		c.sessionID = util.NewSessionID()
	}
	return c.sessionID
}

// LogRootDir returns an empty string
func (c *Context) LogRootDir() string {
	return ""
}

// forRequest returns a copy carrying a fresh session id, so nothing shared
// between requests is written while they log
func (c Context) forRequest() *Context {
	c.sessionID = util.NewSessionID()
	return &c
}
