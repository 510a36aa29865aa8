package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/venicegeo/bf-s2-tile-broker/broker"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/shapefile"
	"github.com/venicegeo/bf-s2-tile-broker/util"
	cli "gopkg.in/urfave/cli.v1"
)

var resolveFlags = []cli.Flag{
	cli.StringFlag{Name: "longitude", Usage: "Longitude of the point, in degrees"},
	cli.StringFlag{Name: "latitude", Usage: "Latitude of the point, in degrees"},
	cli.StringFlag{Name: "start_date", Usage: "Earliest acquisition date, YYYY-MM-DD (inclusive)"},
	cli.StringFlag{Name: "end_date", Usage: "Latest acquisition date, YYYY-MM-DD (exclusive)"},
	cli.StringFlag{Name: "max_cloud_cover", Value: "20", Usage: "Maximum cloud cover, as a percentage"},
	cli.StringFlag{Name: "mode", Value: string(model.SingleTile), Usage: "single or all"},
	cli.StringFlag{Name: "output, o", Usage: "Directory the zip is written to (default: current directory)"},
}

type resolveSummary struct {
	Mode          model.Mode            `json:"mode"`
	MGRSTiles     []string              `json:"mgrs_tiles"`
	ImageMetadata []model.SceneMetadata `json:"image_metadata"`
	Shapefile     string                `json:"shapefile"`
}

func resolveAction(c *cli.Context) error {
	logContext := util.NewBasicLogContext()
	ctx, stop := appContext()
	defer stop()

	values := url.Values{}
	for _, name := range []string{"longitude", "latitude", "start_date", "end_date", "max_cloud_cover", "mode"} {
		values.Set(name, c.String(name))
	}
	query, err := broker.ParseQuery(values)
	if err != nil {
		return err
	}
	mode, err := broker.ParseMode(values, model.SingleTile)
	if err != nil {
		return err
	}

	backend, err := newCatalog(ctx, logContext)
	if err != nil {
		return util.LogSimpleErr(logContext, "Failed to create the catalog client", err)
	}
	result, err := broker.NewPipeline(backend, nil).Resolve(ctx, logContext, query, mode)
	if err != nil {
		return err
	}

	name := broker.ArchiveName(mode, result.TileIDs)
	path := filepath.Join(c.String("output"), name+".zip")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err = shapefile.NewPackager(logContext).WriteAndZip(ctx, name, result.Records, file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("could not finish %s: %v", path, err)
	}

	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resolveSummary{
		Mode:          mode,
		MGRSTiles:     result.TileIDs,
		ImageMetadata: result.Metadata,
		Shapefile:     path,
	})
}
