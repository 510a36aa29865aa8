package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/venicegeo/bf-s2-tile-broker/metrics"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/shapefile"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

const stagingPrefix = ".staged-"

func isArtifactID(name string) bool {
	_, err := uuid.Parse(name)
	return err == nil
}

// Store writes archives into OUTPUT_DIR/<artifact id>/<name>.zip and keeps
// track of them in a Registry
type Store struct {
	Root       string
	Registry   Registry
	Packager   *shapefile.Packager
	LogContext util.LogContext
	now        func() time.Time
}

// NewStore creates the root directory if needed
func NewStore(root string, registry Registry, logContext util.LogContext) (*Store, error) {
	if logContext == nil {
		logContext = util.NewBasicLogContext()
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, model.NewError(model.InternalError, fmt.Sprintf("Failed to create output directory %s", root), err)
	}
	return &Store{
		Root:       root,
		Registry:   registry,
		Packager:   shapefile.NewPackager(logContext),
		LogContext: logContext,
		now:        time.Now,
	}, nil
}

// Create packages the records as `name`.zip in a fresh artifact directory
// and registers it
func (s *Store) Create(ctx context.Context, mode model.Mode, name string, records []model.TileRecord) (*model.Artifact, error) {
	id := uuid.NewString()
	dir := filepath.Join(s.Root, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, model.NewError(model.InternalError, "Failed to create artifact directory", err)
	}

	artifact := model.Artifact{
		ID:        id,
		Filename:  name + ".zip",
		Mode:      mode,
		Tiles:     make([]string, len(records)),
		Path:      filepath.Join(dir, name+".zip"),
		CreatedAt: s.now().UTC(),
	}
	for i, record := range records {
		artifact.Tiles[i] = record.TileID
	}

	size, err := s.writeArchive(ctx, artifact.Path, name, records)
	if err != nil {
		s.removeDir(dir)
		return nil, err
	}
	artifact.Size = size
	if err = s.Registry.Add(ctx, artifact); err != nil {
		s.removeDir(dir)
		return nil, model.NewError(model.InternalError, "Failed to register archive", err)
	}

	metrics.ArchivesCreated.WithLabelValues(string(mode)).Inc()
	s.updateStoredGauge(ctx)
	util.LogAudit(s.LogContext, util.LogAuditInput{Actor: "archive/store", Action: "create", Actee: artifact.DownloadPath(),
		Message: fmt.Sprintf("Stored %s (%d bytes, %d tile(s))", artifact.Filename, artifact.Size, len(records)), Severity: util.INFO})
	return &artifact, nil
}

// Stage packages the records into an unregistered archive. The caller
// must call the returned cleanup function once the file has been served.
func (s *Store) Stage(ctx context.Context, name string, records []model.TileRecord) (*os.File, func(), error) {
	dir, err := os.MkdirTemp(s.Root, stagingPrefix+"*")
	if err != nil {
		return nil, nil, model.NewError(model.InternalError, "Failed to create staging directory", err)
	}
	path := filepath.Join(dir, name+".zip")
	if _, err = s.writeArchive(ctx, path, name, records); err != nil {
		s.removeDir(dir)
		return nil, nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		s.removeDir(dir)
		return nil, nil, model.NewError(model.InternalError, "Failed to reopen staged archive", err)
	}
	cleanup := func() {
		file.Close()
		s.removeDir(dir)
	}
	return file, cleanup, nil
}

func (s *Store) writeArchive(ctx context.Context, path string, name string, records []model.TileRecord) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, model.NewError(model.InternalError, "Failed to create archive file", err)
	}
	if _, err = s.Packager.WriteAndZip(ctx, name, records, file); err != nil {
		file.Close()
		return 0, err
	}
	info, err := file.Stat()
	if err == nil {
		err = file.Close()
	} else {
		file.Close()
	}
	if err != nil {
		return 0, model.NewError(model.InternalError, "Failed to finish archive file", err)
	}
	return info.Size(), nil
}

// Open returns the stored archive for an id and filename
func (s *Store) Open(ctx context.Context, id string, filename string) (*os.File, *model.Artifact, error) {
	if !isArtifactID(id) {
		return nil, nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	artifact, err := s.Registry.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if artifact.Filename != filename {
		return nil, nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	return s.open(ctx, artifact)
}

// OpenLatest returns the most recently stored archive with the filename
func (s *Store) OpenLatest(ctx context.Context, filename string) (*os.File, *model.Artifact, error) {
	if filename != filepath.Base(filename) {
		return nil, nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	artifact, err := s.Registry.Latest(ctx, filename)
	if err != nil {
		return nil, nil, err
	}
	return s.open(ctx, artifact)
}

func (s *Store) open(ctx context.Context, artifact *model.Artifact) (*os.File, *model.Artifact, error) {
	file, err := os.Open(artifact.Path)
	if errors.Is(err, os.ErrNotExist) {
		util.LogAlert(s.LogContext, fmt.Sprintf("Archive %s is registered but missing on disk; unregistering it", artifact.Path))
		s.Registry.Remove(ctx, artifact.ID)
		return nil, nil, model.Errorf(model.NotFoundError, ErrNotFound)
	}
	if err != nil {
		return nil, nil, model.NewError(model.InternalError, "Failed to open archive", err)
	}
	return file, artifact, nil
}

// Sweep removes every artifact created before now minus retention, and
// artifact directories the registry no longer knows about. It returns the
// number of directories removed.
func (s *Store) Sweep(ctx context.Context, retention time.Duration) (int, error) {
	cutoff := s.now().Add(-retention)
	expired, err := s.Registry.Expired(ctx, cutoff)
	if err != nil {
		return 0, model.NewError(model.InternalError, "Failed to list expired archives", err)
	}

	removed := 0
	for _, artifact := range expired {
		if err = ctx.Err(); err != nil {
			return removed, err
		}
		if err = os.RemoveAll(filepath.Join(s.Root, artifact.ID)); err != nil {
			util.LogAlert(s.LogContext, fmt.Sprintf("Failed to remove archive %s: %v", artifact.ID, err))
			continue
		}
		if err = s.Registry.Remove(ctx, artifact.ID); err != nil {
			return removed, model.NewError(model.InternalError, "Failed to unregister archive", err)
		}
		removed++
	}

	orphans, err := s.sweepOrphans(ctx, cutoff)
	removed += orphans
	metrics.ArchivesSwept.Add(float64(removed))
	s.updateStoredGauge(ctx)
	if removed > 0 {
		util.LogInfo(s.LogContext, fmt.Sprintf("Swept %d archive(s) older than %v", removed, retention))
	}
	return removed, err
}

func (s *Store) sweepOrphans(ctx context.Context, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return 0, model.NewError(model.InternalError, "Failed to list output directory", err)
	}
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasPrefix(name, stagingPrefix):
			// left behind by an interrupted download
		case isArtifactID(name):
			if _, err = s.Registry.Get(ctx, name); !model.IsKind(err, model.NotFoundError) {
				continue
			}
		default:
			continue
		}
		s.removeDir(filepath.Join(s.Root, name))
		removed++
	}
	return removed, nil
}

func (s *Store) removeDir(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		util.LogAlert(s.LogContext, fmt.Sprintf("Failed to remove %s: %v", dir, err))
	}
}

func (s *Store) updateStoredGauge(ctx context.Context) {
	if count, err := s.Registry.Count(ctx); err == nil {
		metrics.ArchivesStored.Set(float64(count))
	}
}
