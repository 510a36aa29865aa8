package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/venicegeo/bf-s2-tile-broker/archive"
	"github.com/venicegeo/bf-s2-tile-broker/archive/db"
	"github.com/venicegeo/bf-s2-tile-broker/broker"
	"github.com/venicegeo/bf-s2-tile-broker/catalog"
	"github.com/venicegeo/bf-s2-tile-broker/earthengine"
	"github.com/venicegeo/bf-s2-tile-broker/stac"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// appContext is cancelled on SIGINT or SIGTERM
func appContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newCatalog builds the configured catalog backend, wrapped with the
// timeout, coalescing and instrumentation layers
func newCatalog(ctx context.Context, logContext util.LogContext) (catalog.Catalog, error) {
	var backend catalog.Catalog
	switch name := strings.ToLower(util.GetCatalogBackend()); name {
	case stac.Name:
		requester := catalog.NewRequester(stac.Name, util.HTTPClient(), util.GetCatalogRateLimit(), util.GetCatalogMaxRetries())
		backend = stac.NewClient(util.GetCatalogURL(), util.GetCatalogCollection(), util.GetCatalogPageSize(), requester)
	case earthengine.Name:
		project := util.GetEarthEngineProject()
		if project == "" {
			return nil, fmt.Errorf("the earthengine backend requires %s", util.EE_PROJECT)
		}
		client, err := earthengine.NewAuthorizedHTTPClient(ctx, util.GetCredentialsFile())
		if err != nil {
			return nil, err
		}
		requester := catalog.NewRequester(earthengine.Name, client, util.GetCatalogRateLimit(), util.GetCatalogMaxRetries())
		backend = earthengine.NewClient(util.GetEarthEngineAPIURL(), project, util.GetCatalogPageSize(), requester)
	default:
		return nil, fmt.Errorf("unknown catalog backend `%s` (expected `%s` or `%s`)", name, stac.Name, earthengine.Name)
	}
	util.LogInfo(logContext, "Using catalog backend "+backend.Name())
	return catalog.Wrap(backend, util.GetCatalogTimeout()), nil
}

// newRegistry uses PostgreSQL when a database is configured and an
// in-memory registry otherwise. The returned function releases it.
func newRegistry(logContext util.LogContext) (archive.Registry, func(), error) {
	database, err := getDbConnectionFunc(logContext)
	if errors.Is(err, util.ErrNoDatabase) {
		util.LogInfo(logContext, "No database configured; keeping the archive registry in memory")
		return archive.NewMemoryRegistry(), func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return db.NewRegistry(database), func() { database.Close() }, nil
}

func newStore(logContext util.LogContext) (*archive.Store, func(), error) {
	registry, closeRegistry, err := newRegistry(logContext)
	if err != nil {
		return nil, nil, err
	}
	store, err := archive.NewStore(util.GetOutputDir(), registry, logContext)
	if err != nil {
		closeRegistry()
		return nil, nil, err
	}
	return store, closeRegistry, nil
}

func newPipeline(ctx context.Context, logContext util.LogContext) (*broker.Pipeline, func(), error) {
	c, err := newCatalog(ctx, logContext)
	if err != nil {
		return nil, nil, err
	}
	store, closeRegistry, err := newStore(logContext)
	if err != nil {
		return nil, nil, err
	}
	return broker.NewPipeline(c, store), closeRegistry, nil
}
