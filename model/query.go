package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Mode selects how the scenes matching a query are turned into tiles
type Mode string

const (
	// SingleTile uses only the tile of the first scene the catalog returns
	SingleTile Mode = "single"
	// AllTiles uses every distinct tile across all matching scenes
	AllTiles Mode = "all"
)

// ParseMode parses a mode name; an empty name means SingleTile
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", string(SingleTile), "first":
		return SingleTile, nil
	case string(AllTiles), "multi", "distinct":
		return AllTiles, nil
	default:
		return "", Errorf(ValidationError, "Unknown mode `%s` (expected `single` or `all`)", name)
	}
}

// Query holds the parameters of a scene search
type Query struct {
	Longitude     float64
	Latitude      float64
	StartDate     time.Time
	EndDate       time.Time
	MaxCloudCover float64
}

// Point returns the query location
func (q Query) Point() orb.Point {
	return orb.Point{q.Longitude, q.Latitude}
}

// Validate checks the ranges of every parameter
func (q Query) Validate() error {
	switch {
	case q.Longitude < -180 || q.Longitude > 180:
		return Errorf(ValidationError, "Longitude %v is outside [-180, 180]", q.Longitude)
	case q.Latitude < -90 || q.Latitude > 90:
		return Errorf(ValidationError, "Latitude %v is outside [-90, 90]", q.Latitude)
	case q.MaxCloudCover < 0 || q.MaxCloudCover > 100:
		return Errorf(ValidationError, "Maximum cloud cover %v is outside [0, 100]", q.MaxCloudCover)
	case q.StartDate.IsZero() || q.EndDate.IsZero():
		return Errorf(ValidationError, "Both a start date and an end date are required")
	case q.StartDate.After(q.EndDate):
		return Errorf(ValidationError, "Start date %s is after end date %s",
			q.StartDate.Format(DateLayout), q.EndDate.Format(DateLayout))
	}
	return nil
}

// Key identifies the query; equal queries have equal keys
func (q Query) Key() string {
	return fmt.Sprintf("%.7f,%.7f/%s/%s/%g",
		q.Longitude, q.Latitude,
		q.StartDate.UTC().Format(time.RFC3339), q.EndDate.UTC().Format(time.RFC3339),
		q.MaxCloudCover)
}

// Admits reports whether a scene passes the temporal and attribute filters:
// acquired in [StartDate, EndDate) and cloud cover strictly below the maximum
func (q Query) Admits(scene Scene) bool {
	if scene.Acquired.Before(q.StartDate) || !scene.Acquired.Before(q.EndDate) {
		return false
	}
	return scene.CloudCover < q.MaxCloudCover
}
