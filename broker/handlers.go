package broker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

const maxFormBytes = 1 << 20

// ProcessResponse is the JSON body of a successful /process request
type ProcessResponse struct {
	Status            string                `json:"status"`
	Mode              model.Mode            `json:"mode"`
	MGRSTile          string                `json:"mgrs_tile"`
	MGRSTiles         []string              `json:"mgrs_tiles"`
	Footprint         string                `json:"footprint"`
	ImageMetadata     []model.SceneMetadata `json:"image_metadata"`
	ShapefileDownload string                `json:"shapefile_download"`
}

func newProcessResponse(result *Result) ProcessResponse {
	response := ProcessResponse{
		Status:        "success",
		Mode:          result.Mode,
		MGRSTiles:     result.TileIDs,
		Footprint:     model.EnvelopeFootprint,
		ImageMetadata: result.Metadata,
	}
	if len(result.TileIDs) > 0 {
		response.MGRSTile = result.TileIDs[0]
	}
	if result.Artifact != nil {
		response.ShapefileDownload = result.Artifact.DownloadPath()
	}
	return response
}

// writeError reports a failure as {status, kind, message} with the status
// code of its kind
func writeError(r *http.Request, w http.ResponseWriter, ctx util.LogContext, err error) {
	kind := model.KindOf(err)
	message := err.Error()
	switch kind {
	case model.InternalError:
		util.LogSimpleErr(ctx, "Internal failure while handling "+r.URL.Path, err)
		message = "An internal error occurred while processing the request."
		var brokerErr *model.BrokerError
		if errors.As(err, &brokerErr) && brokerErr.Message != "" {
			message = brokerErr.Message
		}
	case model.RemoteServiceError:
		util.LogSimpleErr(ctx, "Catalog failure while handling "+r.URL.Path, err)
	default:
		util.LogInfo(ctx, fmt.Sprintf("Rejected %s %s: %s", r.Method, r.URL.Path, message))
	}
	util.HTTPKindError(r, w, ctx, string(kind), message, kind.HTTPStatus())
}

func limitBody(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	}
}

// ProcessHandler is a handler for POST /process. shapefile_download is
// namespaced by artifact id (/download/{id}/{filename}) so concurrent
// requests for the same tile never share an archive; the flat
// /download/{filename} still serves the most recent archive of that name.
// @Title processHandler
// @Description resolves the MGRS tile(s) of a point and stores a zipped shapefile of their footprints
// @Accept  application/x-www-form-urlencoded
// @Param   longitude       formData number  true   "Longitude of the point, in degrees"
// @Param   latitude        formData number  true   "Latitude of the point, in degrees"
// @Param   start_date      formData string  true   "Earliest acquisition date, YYYY-MM-DD (inclusive)"
// @Param   end_date        formData string  true   "Latest acquisition date, YYYY-MM-DD (exclusive)"
// @Param   max_cloud_cover formData number  true   "Maximum cloud cover, as a percentage (0-100, exclusive)"
// @Param   mode            formData string  false  "single (default) or all"
// @Success 200 {object}  ProcessResponse
// @Failure 400 {object}  util.ErrorResponse
// @Router /process [post]
type ProcessHandler struct {
	Context Context
}

// NewProcessHandler creates a new handler running the given pipeline
func NewProcessHandler(pipeline *Pipeline) *ProcessHandler {
	return &ProcessHandler{Context: Context{Pipeline: pipeline}}
}

// ServeHTTP implements the http.Handler interface for the ProcessHandler type
func (h ProcessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.Context.forRequest()
	limitBody(w, r)

	values, err := formValues(r)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	query, err := ParseQuery(values)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	mode, err := ParseMode(values, model.SingleTile)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}

	result, err := h.Context.Pipeline.Process(r.Context(), ctx, query, mode)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, newProcessResponse(result))
}

// BatchHandler is a handler for POST /, returning the zipped shapefile of
// every distinct tile as the response body
type BatchHandler struct {
	Context Context
}

// NewBatchHandler creates a new handler running the given pipeline
func NewBatchHandler(pipeline *Pipeline) *BatchHandler {
	return &BatchHandler{Context: Context{Pipeline: pipeline}}
}

// ServeHTTP implements the http.Handler interface for the BatchHandler type
func (h BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.Context.forRequest()
	limitBody(w, r)

	values, err := formValues(r)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	query, err := ParseQuery(values)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}

	result, file, cleanup, err := h.Context.Pipeline.ProcessStaged(r.Context(), ctx, query, model.AllTiles)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	defer cleanup()

	filename := model.CollectionArchiveName + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("X-Mgrs-Tile-Count", strconv.Itoa(len(result.TileIDs)))
	http.ServeContent(w, r, filename, time.Now(), file)
}

// DownloadHandler is a handler for /download/{id}/{filename} and the flat
// /download/{filename}, which serves the most recent archive of that name
type DownloadHandler struct {
	Context Context
}

// NewDownloadHandler creates a new handler serving the pipeline's store
func NewDownloadHandler(pipeline *Pipeline) *DownloadHandler {
	return &DownloadHandler{Context: Context{Pipeline: pipeline}}
}

// ServeHTTP implements the http.Handler interface for the DownloadHandler type
func (h DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.Context.forRequest()
	vars := mux.Vars(r)
	filename := vars["filename"]
	store := h.Context.Pipeline.Store

	var (
		file     *os.File
		artifact *model.Artifact
		err      error
	)
	if id, ok := vars["id"]; ok {
		file, artifact, err = store.Open(r.Context(), id, filename)
	} else {
		file, artifact, err = store.OpenLatest(r.Context(), filename)
	}
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename="+artifact.Filename)
	http.ServeContent(w, r, artifact.Filename, artifact.CreatedAt, file)
}

// DiscoverHandler is a handler for GET /discover, returning the tile
// envelopes as a GeoJSON FeatureCollection without writing an archive
// @Param   scenes          query   bool    false  "True: list the scenes of each tile"
type DiscoverHandler struct {
	Context Context
}

// NewDiscoverHandler creates a new handler running the given pipeline
func NewDiscoverHandler(pipeline *Pipeline) *DiscoverHandler {
	return &DiscoverHandler{Context: Context{Pipeline: pipeline}}
}

// ServeHTTP implements the http.Handler interface for the DiscoverHandler type
func (h DiscoverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := h.Context.forRequest()

	values, err := formValues(r)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	query, err := ParseQuery(values)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	mode, err := ParseMode(values, model.AllTiles)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	withScenes, _ := strconv.ParseBool(values.Get("scenes"))

	result, err := h.Context.Pipeline.Resolve(r.Context(), ctx, query, mode)
	if err != nil {
		writeError(r, w, ctx, err)
		return
	}
	if withScenes {
		for i := range result.Records {
			result.Records[i].Scenes = model.SceneList{}
			for _, scene := range result.Scenes {
				if scene.TileID == result.Records[i].TileID {
					result.Records[i].Scenes = append(result.Records[i].Scenes, scene.Metadata())
				}
			}
		}
	}

	featureCollection, err := model.NewMultiTileResult(result.Records).GeoJSONFeatureCollection()
	if err != nil {
		writeError(r, w, ctx, model.NewError(model.InternalError, "Error converting tiles to a feature collection", err))
		return
	}
	body, err := json.Marshal(featureCollection)
	if err != nil {
		writeError(r, w, ctx, model.NewError(model.InternalError, "Error encoding the feature collection", err))
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}
