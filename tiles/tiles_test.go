package tiles

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// Mocks

var mockQuery = model.Query{
	Longitude:     10.0,
	Latitude:      45.0,
	StartDate:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	EndDate:       time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
	MaxCloudCover: 100,
}

func footprint(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Bound{Min: orb.Point{minX, minY}, Max: orb.Point{maxX, maxY}}.ToRing()}
}

var mockScenes = []model.Scene{
	{ImageID: "A", TileID: "32TPQ", CloudCover: 12, Acquired: time.Date(2023, 6, 5, 10, 0, 0, 0, time.UTC), Geometry: footprint(9.6, 44.9, 10.8, 45.8)},
	{ImageID: "B", TileID: "32TQQ", CloudCover: 4, Acquired: time.Date(2023, 6, 6, 10, 0, 0, 0, time.UTC), Geometry: footprint(10.7, 44.9, 12.1, 45.9)},
	{ImageID: "C", TileID: "", CloudCover: 1, Acquired: time.Date(2023, 6, 7, 10, 0, 0, 0, time.UTC)},
	{ImageID: "D", TileID: "32TPQ", CloudCover: 30, Acquired: time.Date(2023, 6, 8, 10, 0, 0, 0, time.UTC), Geometry: footprint(9.5, 45.0, 10.4, 45.9)},
}

func mockCatalog(scenes []model.Scene, err error) catalog.Catalog {
	return catalog.Func(func(ctx context.Context, query model.Query) ([]model.Scene, error) {
		return scenes, err
	})
}

func TestMain(m *testing.M) {
	util.SetLogOutput(&bytes.Buffer{})
	os.Exit(m.Run())
}

// Resolver

func TestResolve_SingleTile(t *testing.T) {
	resolution, err := NewResolver(mockCatalog(mockScenes, nil), nil).Resolve(context.Background(), mockQuery, model.SingleTile)

	assert.Nil(t, err)
	assert.Equal(t, []string{"32TPQ"}, resolution.TileIDs)
	assert.Len(t, resolution.Scenes, 4)
}

func TestResolve_SingleTile_FirstSceneUntiled(t *testing.T) {
	scenes := []model.Scene{mockScenes[2], mockScenes[1]}

	resolution, err := NewResolver(mockCatalog(scenes, nil), nil).Resolve(context.Background(), mockQuery, model.SingleTile)

	assert.Nil(t, err)
	assert.Equal(t, []string{"32TQQ"}, resolution.TileIDs)
}

func TestResolve_SingleTile_NoData(t *testing.T) {
	_, err := NewResolver(mockCatalog(nil, nil), nil).Resolve(context.Background(), mockQuery, model.SingleTile)

	assert.Equal(t, model.NoDataError, model.KindOf(err))
	assert.Equal(t, NoImagesMessage, err.Error())
}

func TestResolve_AllTiles(t *testing.T) {
	resolution, err := NewResolver(mockCatalog(mockScenes, nil), nil).Resolve(context.Background(), mockQuery, model.AllTiles)

	assert.Nil(t, err)
	assert.Equal(t, []string{"32TPQ", "32TQQ"}, resolution.TileIDs)
}

func TestResolve_AllTiles_Empty(t *testing.T) {
	resolution, err := NewResolver(mockCatalog(nil, nil), nil).Resolve(context.Background(), mockQuery, model.AllTiles)

	assert.Nil(t, err)
	assert.NotNil(t, resolution.TileIDs)
	assert.Empty(t, resolution.TileIDs)
}

func TestResolve_RemoteFailure(t *testing.T) {
	resolver := NewResolver(mockCatalog(nil, errors.New("dial tcp: connection refused")), nil)

	_, err := resolver.Resolve(context.Background(), mockQuery, model.SingleTile)

	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestResolve_InvalidInput(t *testing.T) {
	query := mockQuery
	query.Latitude = 95

	_, err := NewResolver(mockCatalog(mockScenes, nil), nil).Resolve(context.Background(), query, model.AllTiles)
	assert.Equal(t, model.ValidationError, model.KindOf(err))

	_, err = NewResolver(mockCatalog(mockScenes, nil), nil).Resolve(context.Background(), mockQuery, model.Mode("most"))
	assert.Equal(t, model.ValidationError, model.KindOf(err))
}

// Geometry

func TestBuildPolygon(t *testing.T) {
	ring, err := BuildPolygon("32TPQ", mockScenes)

	assert.Nil(t, err)
	assert.Equal(t, orb.Ring{{9.5, 44.9}, {10.8, 44.9}, {10.8, 45.9}, {9.5, 45.9}, {9.5, 44.9}}, ring)
	assert.True(t, model.IsClosedRing(ring))
}

func TestBuildPolygon_NoGeometry(t *testing.T) {
	_, err := BuildPolygon("32TPQ", []model.Scene{{ImageID: "X", TileID: "32TPQ"}})
	assert.Equal(t, model.NoDataError, model.KindOf(err))

	_, err = BuildPolygon("01CDE", mockScenes)
	assert.Equal(t, model.NoDataError, model.KindOf(err))
}

func TestBuildRecords(t *testing.T) {
	records, err := BuildRecords(nil, []string{"32TQQ", "32TPQ"}, mockScenes)

	assert.Nil(t, err)
	if assert.Len(t, records, 2) {
		assert.Equal(t, "32TQQ", records[0].TileID)
		assert.Equal(t, 1, records[0].SceneCount)
		assert.Equal(t, "32TPQ", records[1].TileID)
		assert.Equal(t, 2, records[1].SceneCount)
		assert.Equal(t, 12.0, records[1].MinCloudCover)
		assert.Len(t, records[1].Polygon, 5)
	}
}

func TestBuildRecords_SkipsTilesWithoutGeometry(t *testing.T) {
	scenes := append([]model.Scene{{ImageID: "E", TileID: "33TUK", CloudCover: 2}}, mockScenes...)

	records, err := BuildRecords(util.NewBasicLogContext(), []string{"33TUK", "32TPQ", "32TQQ"}, scenes)

	assert.Nil(t, err)
	assert.Equal(t, []string{"32TPQ", "32TQQ"}, RecordTileIDs(records))
}

func TestBuildRecords_NoGeometryAnywhere(t *testing.T) {
	scenes := []model.Scene{{ImageID: "E", TileID: "33TUK"}, {ImageID: "F", TileID: "33TVK"}}

	_, err := BuildRecords(nil, []string{"33TUK", "33TVK"}, scenes)
	assert.Equal(t, model.NoDataError, model.KindOf(err))

	// A single requested tile is never skipped
	_, err = BuildRecords(nil, []string{"33TUK"}, scenes)
	assert.Equal(t, model.NoDataError, model.KindOf(err))

	records, err := BuildRecords(nil, nil, scenes)
	assert.Nil(t, err)
	assert.Empty(t, records)
}

func TestListSceneMetadata(t *testing.T) {
	metadata := ListSceneMetadata(mockScenes)

	assert.Len(t, metadata, 4)
	assert.Equal(t, model.SceneMetadata{ImageID: "A", Date: "2023-06-05", CloudCover: 12}, metadata[0])
	assert.Equal(t, "C", metadata[2].ImageID)
	assert.NotNil(t, ListSceneMetadata(nil))
}
