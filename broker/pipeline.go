package broker

import (
	"context"
	"os"

	"github.com/venicegeo/bf-s2-tile-broker/archive"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/tiles"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// Pipeline runs input -> Resolver -> Builder -> Packager -> Store
type Pipeline struct {
	Catalog catalog.Catalog
	Store   *archive.Store
}

// NewPipeline creates a pipeline over a (wrapped) catalog and a store
func NewPipeline(c catalog.Catalog, store *archive.Store) *Pipeline {
	return &Pipeline{Catalog: c, Store: store}
}

// Result is everything a processed request reports back
type Result struct {
	Mode     model.Mode
	TileIDs  []string
	Records  []model.TileRecord
	Metadata []model.SceneMetadata
	Scenes   []model.Scene
	Artifact *model.Artifact
}

// ArchiveName is the dataset name for a mode: the tile id in single mode,
// the fixed collection name otherwise
func ArchiveName(mode model.Mode, tileIDs []string) string {
	if mode == model.SingleTile && len(tileIDs) > 0 {
		return tileIDs[0]
	}
	return model.CollectionArchiveName
}

// Resolve runs the resolver and geometry builder without writing anything
func (p *Pipeline) Resolve(ctx context.Context, logContext util.LogContext, query model.Query, mode model.Mode) (*Result, error) {
	resolution, err := tiles.NewResolver(p.Catalog, logContext).Resolve(ctx, query, mode)
	if err != nil {
		return nil, err
	}
	records, err := tiles.BuildRecords(logContext, resolution.TileIDs, resolution.Scenes)
	if err != nil {
		return nil, err
	}
	return &Result{
		Mode:     mode,
		TileIDs:  tiles.RecordTileIDs(records),
		Records:  records,
		Metadata: tiles.ListSceneMetadata(resolution.Scenes),
		Scenes:   resolution.Scenes,
	}, nil
}

// Process resolves the query and stores the archive for later download
func (p *Pipeline) Process(ctx context.Context, logContext util.LogContext, query model.Query, mode model.Mode) (*Result, error) {
	result, err := p.Resolve(ctx, logContext, query, mode)
	if err != nil {
		return nil, err
	}
	if result.Artifact, err = p.Store.Create(ctx, mode, ArchiveName(mode, result.TileIDs), result.Records); err != nil {
		return nil, err
	}
	return result, nil
}

// ProcessStaged resolves the query and packages an unregistered archive.
// The caller serves the file and then calls cleanup.
func (p *Pipeline) ProcessStaged(ctx context.Context, logContext util.LogContext, query model.Query, mode model.Mode) (*Result, *os.File, func(), error) {
	result, err := p.Resolve(ctx, logContext, query, mode)
	if err != nil {
		return nil, nil, nil, err
	}
	file, cleanup, err := p.Store.Stage(ctx, ArchiveName(mode, result.TileIDs), result.Records)
	if err != nil {
		return nil, nil, nil, err
	}
	return result, file, cleanup, nil
}
