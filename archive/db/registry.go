// Package db is the PostgreSQL implementation of the archive registry
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/venicegeo/bf-s2-tile-broker/archive"
	"github.com/venicegeo/bf-s2-tile-broker/model"
)

const artifactColumns = `id, filename, mode, tiles, path, size, created_at`

//Registry is an archive.Registry backed by the public.artifacts table.
type Registry struct {
	DB *sql.DB
}

//NewRegistry wraps an open database connection.
func NewRegistry(database *sql.DB) *Registry {
	return &Registry{DB: database}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArtifact(row scanner) (*model.Artifact, error) {
	var (
		artifact model.Artifact
		mode     string
		tiles    []string
	)
	err := row.Scan(&artifact.ID, &artifact.Filename, &mode, pq.Array(&tiles), &artifact.Path, &artifact.Size, &artifact.CreatedAt)
	if err != nil {
		return nil, err
	}
	artifact.Mode = model.Mode(mode)
	artifact.Tiles = tiles
	artifact.CreatedAt = artifact.CreatedAt.UTC()
	return &artifact, nil
}

//Add implements archive.Registry.
func (r *Registry) Add(ctx context.Context, artifact model.Artifact) error {
	tiles := artifact.Tiles
	if tiles == nil {
		tiles = []string{}
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO public.artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		artifact.ID, artifact.Filename, string(artifact.Mode), pq.Array(tiles), artifact.Path, artifact.Size, artifact.CreatedAt,
	)
	return err
}

//Get implements archive.Registry.
func (r *Registry) Get(ctx context.Context, id string) (*model.Artifact, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+artifactColumns+`
		FROM public.artifacts
		WHERE id=$1`,
		id,
	)
	return notFound(scanArtifact(row))
}

//Latest implements archive.Registry.
func (r *Registry) Latest(ctx context.Context, filename string) (*model.Artifact, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT `+artifactColumns+`
		FROM public.artifacts
		WHERE filename=$1
		ORDER BY created_at DESC
		LIMIT 1`,
		filename,
	)
	return notFound(scanArtifact(row))
}

//Expired implements archive.Registry.
func (r *Registry) Expired(ctx context.Context, cutoff time.Time) ([]model.Artifact, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM public.artifacts
		WHERE created_at < $1
		ORDER BY created_at`,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []model.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *artifact)
	}
	return expired, rows.Err()
}

//Remove implements archive.Registry.
func (r *Registry) Remove(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM public.artifacts WHERE id=$1`, id)
	return err
}

//Count implements archive.Registry.
func (r *Registry) Count(ctx context.Context) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM public.artifacts`).Scan(&count)
	return count, err
}

func notFound(artifact *model.Artifact, err error) (*model.Artifact, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.Errorf(model.NotFoundError, archive.ErrNotFound)
	}
	return artifact, err
}

var _ archive.Registry = (*Registry)(nil)
