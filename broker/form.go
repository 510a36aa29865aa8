package broker

import (
	"html/template"
	"net/http"

	"github.com/venicegeo/bf-s2-tile-broker/util"
)

const indexTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Sentinel-2 MGRS tile broker</title>
</head>
<body>
<h1>Sentinel-2 MGRS tile broker</h1>
<form method="post" action="/process">
  <p><label>Longitude <input name="longitude" type="number" step="any" min="-180" max="180" required></label></p>
  <p><label>Latitude <input name="latitude" type="number" step="any" min="-90" max="90" required></label></p>
  <p><label>Start date <input name="start_date" type="date" required></label></p>
  <p><label>End date (exclusive) <input name="end_date" type="date" required></label></p>
  <p><label>Maximum cloud cover (%) <input name="max_cloud_cover" type="number" step="any" min="0" max="100" value="{{.DefaultCloudCover}}" required></label></p>
  <p><label>Mode <select name="mode">
    {{range .Modes}}<option value="{{.}}">{{.}}</option>{{end}}
  </select></label></p>
  <p><button type="submit">Find tiles</button>
     <button type="submit" formaction="/">Download all tiles</button></p>
</form>
<p>Tile polygons are bounding envelopes of the matching scene footprints, not exact MGRS tile boundaries.</p>
</body>
</html>
`

var index = template.Must(template.New("index").Parse(indexTemplate))

type formData struct {
	DefaultCloudCover float64
	Modes             []string
}

// FormHandler serves the input form at /
type FormHandler struct {
	Context Context
}

// NewFormHandler creates a new form handler
func NewFormHandler() *FormHandler {
	return &FormHandler{}
}

// ServeHTTP implements the http.Handler interface for the FormHandler type
func (h FormHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := index.Execute(w, formData{DefaultCloudCover: 20, Modes: []string{"single", "all"}}); err != nil {
		util.LogSimpleErr(h.Context.forRequest(), "Failed to render the input form", err)
	}
}
