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

// Package archive keeps generated shapefile archives in per-request
// directories and removes them once their retention window has passed
package archive

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/venicegeo/bf-s2-tile-broker/model"
)

// Registry indexes stored artifacts. Lookups of unknown artifacts return
// a NotFoundError.
type Registry interface {
	Add(ctx context.Context, artifact model.Artifact) error
	Get(ctx context.Context, id string) (*model.Artifact, error)
	Latest(ctx context.Context, filename string) (*model.Artifact, error)
	Expired(ctx context.Context, cutoff time.Time) ([]model.Artifact, error)
	Remove(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// ErrNotFound is the message of every failed artifact lookup
const ErrNotFound = "File not found."

// MemoryRegistry is a Registry that lives as long as the process
type MemoryRegistry struct {
	mutex     sync.RWMutex
	artifacts map[string]model.Artifact
}

// NewMemoryRegistry creates an empty in-memory registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{artifacts: make(map[string]model.Artifact)}
}

// Add implements Registry
func (r *MemoryRegistry) Add(ctx context.Context, artifact model.Artifact) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	artifact.Tiles = append([]string(nil), artifact.Tiles...)
	r.artifacts[artifact.ID] = artifact
	return nil
}

// Get implements Registry
func (r *MemoryRegistry) Get(ctx context.Context, id string) (*model.Artifact, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	artifact, ok := r.artifacts[id]
	if !ok {
		return nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	return &artifact, nil
}

// Latest implements Registry
func (r *MemoryRegistry) Latest(ctx context.Context, filename string) (*model.Artifact, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var latest *model.Artifact
	for _, artifact := range r.artifacts {
		if artifact.Filename != filename {
			continue
		}
		if latest == nil || artifact.CreatedAt.After(latest.CreatedAt) {
			candidate := artifact
			latest = &candidate
		}
	}
	if latest == nil {
		return nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	return latest, nil
}

// Expired implements Registry; results are oldest first
func (r *MemoryRegistry) Expired(ctx context.Context, cutoff time.Time) ([]model.Artifact, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	var expired []model.Artifact
	for _, artifact := range r.artifacts {
		if artifact.CreatedAt.Before(cutoff) {
			expired = append(expired, artifact)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].CreatedAt.Before(expired[j].CreatedAt)
	})
	return expired, nil
}

// Remove implements Registry. Removing an unknown id is not an error.
func (r *MemoryRegistry) Remove(ctx context.Context, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.artifacts, id)
	return nil
}

// Count implements Registry
func (r *MemoryRegistry) Count(ctx context.Context) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.artifacts), nil
}
