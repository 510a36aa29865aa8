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

// Package shapefile writes tile footprints as zipped ESRI shapefiles
package shapefile

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

// WGS84 is the ESRI WKT of EPSG:4326 written to every .prj file
const WGS84 = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

// tileIDFieldLength is the width of the tile_id attribute column
const tileIDFieldLength = 64

// Extensions are the component files of a dataset, in archive order
var Extensions = []string{".shp", ".shx", ".dbf", ".prj"}

// Packager writes shapefile datasets in a scratch directory and zips them
type Packager struct {
	// TempDir is the parent of the per-call staging directories; empty
	// means the system default
	TempDir    string
	LogContext util.LogContext
}

// NewPackager creates a packager staging under the system temp directory
func NewPackager(logContext util.LogContext) *Packager {
	if logContext == nil {
		logContext = util.NewBasicLogContext()
	}
	return &Packager{LogContext: logContext}
}

// WriteAndZip writes one polygon feature per record into the dataset
// `name`, zips its component files into w and returns the archive entry
// names. The staging directory is removed before returning.
func (p *Packager) WriteAndZip(ctx context.Context, name string, records []model.TileRecord, w io.Writer) ([]string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, model.Errorf(model.InternalError, "Invalid dataset name %q", name)
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, err
		}
	}

	stagingDir, err := os.MkdirTemp(p.TempDir, "shapefile-")
	if err != nil {
		return nil, model.NewError(model.InternalError, "Failed to create a staging directory", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			util.LogAlert(p.LogContext, fmt.Sprintf("Failed to remove staging directory %s: %v", stagingDir, err))
		}
	}()

	if err = p.writeDataset(stagingDir, name, records); err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, model.NewError(model.InternalError, "Packaging cancelled", err)
	}
	entries, err := zipDataset(stagingDir, name, w)
	if err != nil {
		return nil, err
	}
	util.LogInfo(p.LogContext, fmt.Sprintf("Packaged %d tile(s) into %s.zip", len(records), name))
	return entries, nil
}

func (p *Packager) writeDataset(dir string, name string, records []model.TileRecord) error {
	base := filepath.Join(dir, name)
	writer, err := shp.Create(base+".shp", shp.POLYGON)
	if err != nil {
		return model.NewError(model.InternalError, "Failed to create shapefile", err)
	}
	if err = writer.SetFields([]shp.Field{shp.StringField(model.TileIDAttribute, tileIDFieldLength)}); err != nil {
		writer.Close()
		return model.NewError(model.InternalError, "Failed to define shapefile attributes", err)
	}
	for _, record := range records {
		polygon := shp.Polygon(*shp.NewPolyLine([][]shp.Point{toPoints(Clockwise(record.Polygon))}))
		row := writer.Write(&polygon)
		if err = writer.WriteAttribute(int(row), 0, record.TileID); err != nil {
			writer.Close()
			return model.NewError(model.InternalError, fmt.Sprintf("Failed to write attributes of tile %s", record.TileID), err)
		}
	}
	writer.Close()
	if err = moveAttributeTable(base); err != nil {
		return model.NewError(model.InternalError, "Failed to place the attribute table", err)
	}

	if err = os.WriteFile(base+".prj", []byte(WGS84), 0644); err != nil {
		return model.NewError(model.InternalError, "Failed to write projection file", err)
	}
	return nil
}

// moveAttributeTable renames the table go-shp writes as `<base>dbf` to
// `<base>.dbf`. Writers that already use the dotted name are left alone.
func moveAttributeTable(base string) error {
	undotted := base + "dbf"
	if _, err := os.Stat(undotted); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.Rename(undotted, base+".dbf")
}

// Clockwise returns the ring with clockwise winding, as shapefile outer
// rings require. The input is not modified.
func Clockwise(ring orb.Ring) orb.Ring {
	result := make(orb.Ring, len(ring))
	copy(result, ring)
	if ring.Orientation() == orb.CCW {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result
}

func toPoints(ring orb.Ring) []shp.Point {
	points := make([]shp.Point, len(ring))
	for i, point := range ring {
		points[i] = shp.Point{X: point.X(), Y: point.Y()}
	}
	return points
}

func zipDataset(dir string, name string, w io.Writer) ([]string, error) {
	archive := zip.NewWriter(w)
	entries := make([]string, 0, len(Extensions))
	for _, extension := range Extensions {
		entry := name + extension
		if err := addFile(archive, filepath.Join(dir, entry), entry); err != nil {
			archive.Close()
			return nil, model.NewError(model.InternalError, fmt.Sprintf("Failed to add %s to the archive", entry), err)
		}
		entries = append(entries, entry)
	}
	if err := archive.Close(); err != nil {
		return nil, model.NewError(model.InternalError, "Failed to finish the archive", err)
	}
	return entries, nil
}

func addFile(archive *zip.Writer, path string, entry string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = entry
	header.Method = zip.Deflate
	writer, err := archive.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(writer, file)
	return err
}
