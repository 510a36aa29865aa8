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

// Package catalog defines the imagery catalog abstraction and the wrappers
// that make remote searches bounded: timeouts, coalescing of identical
// in-flight queries, rate limiting and retries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/venicegeo/bf-s2-tile-broker/metrics"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"golang.org/x/sync/singleflight"
)

// Catalog searches a remote imagery catalog. Scenes come back in the
// catalog's native order; every scene intersects the query point, was
// acquired in [StartDate, EndDate) and has a cloud cover strictly below
// the query maximum.
type Catalog interface {
	Search(ctx context.Context, query model.Query) ([]model.Scene, error)
	Name() string
}

// Func adapts a plain function to the Catalog interface
type Func func(ctx context.Context, query model.Query) ([]model.Scene, error)

// Search implements the Catalog interface
func (f Func) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	return f(ctx, query)
}

// Name implements the Catalog interface
func (f Func) Name() string {
	return "func"
}

// Timeout bounds every search of the wrapped catalog
type Timeout struct {
	Catalog
	Duration time.Duration
}

// Search implements the Catalog interface
func (t Timeout) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	if t.Duration <= 0 {
		return t.Catalog.Search(ctx, query)
	}
	ctx, cancel := context.WithTimeout(ctx, t.Duration)
	defer cancel()

	scenes, err := t.Catalog.Search(ctx, query)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !model.IsKind(err, model.RemoteServiceError) {
		return nil, model.NewError(model.RemoteServiceError, fmt.Sprintf("Catalog search timed out after %v", t.Duration), err)
	}
	return scenes, err
}

// Coalescing shares a single in-flight search among concurrent callers
// issuing the same query. Each caller still honours its own context.
type Coalescing struct {
	Catalog
	group singleflight.Group
}

// NewCoalescing wraps a catalog so that identical concurrent queries hit it once
func NewCoalescing(c Catalog) *Coalescing {
	return &Coalescing{Catalog: c}
}

// Search implements the Catalog interface
func (c *Coalescing) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	key := c.Catalog.Name() + "|" + query.Key()
	resultChan := c.group.DoChan(key, func() (interface{}, error) {
		// The shared search must outlive whichever caller started it
		return c.Catalog.Search(context.WithoutCancel(ctx), query)
	})

	select {
	case result := <-resultChan:
		if result.Shared {
			metrics.CatalogCoalescedSearches.WithLabelValues(c.Catalog.Name()).Inc()
		}
		if result.Err != nil {
			return nil, result.Err
		}
		scenes := result.Val.([]model.Scene)
		return append([]model.Scene(nil), scenes...), nil
	case <-ctx.Done():
		return nil, model.NewError(model.RemoteServiceError, "Catalog search abandoned", ctx.Err())
	}
}

// Instrumented records the outcome and latency of every search
type Instrumented struct {
	Catalog
}

// Search implements the Catalog interface
func (i Instrumented) Search(ctx context.Context, query model.Query) ([]model.Scene, error) {
	start := time.Now()
	scenes, err := i.Catalog.Search(ctx, query)
	outcome := "success"
	if err != nil {
		outcome = string(model.KindOf(err))
	}
	metrics.CatalogSearches.WithLabelValues(i.Catalog.Name(), outcome).Inc()
	metrics.CatalogSearchDuration.WithLabelValues(i.Catalog.Name()).Observe(time.Since(start).Seconds())
	return scenes, err
}

// Wrap stacks the standard wrappers around a backend: coalescing on the
// outside, then instrumentation, then the timeout
func Wrap(backend Catalog, timeout time.Duration) Catalog {
	return NewCoalescing(Instrumented{Catalog: Timeout{Catalog: backend, Duration: timeout}})
}
