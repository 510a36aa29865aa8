package model

import (
	"time"

	"github.com/paulmach/orb"
)

// Scene is a single image acquisition returned by an imagery catalog
type Scene struct {
	ImageID    string
	Acquired   time.Time
	CloudCover float64
	TileID     string
	Geometry   orb.Geometry
}

// SceneMetadata is what callers are told about each matching scene
type SceneMetadata struct {
	ImageID    string  `json:"image_id"`
	Date       string  `json:"date"`
	CloudCover float64 `json:"cloud_cover"`
}

// Metadata returns the caller-facing metadata of the scene
func (s Scene) Metadata() SceneMetadata {
	return SceneMetadata{
		ImageID:    s.ImageID,
		Date:       s.Acquired.UTC().Format(DateLayout),
		CloudCover: s.CloudCover,
	}
}
