package broker

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter routes the broker's endpoints to handlers sharing one pipeline
func NewRouter(pipeline *Pipeline) *mux.Router {
	router := mux.NewRouter()

	router.Handle("/", NewFormHandler()).Methods(http.MethodGet)
	router.Handle("/", NewBatchHandler(pipeline)).Methods(http.MethodPost)
	router.Handle("/process", NewProcessHandler(pipeline)).Methods(http.MethodPost)
	router.Handle("/discover", NewDiscoverHandler(pipeline)).Methods(http.MethodGet)
	router.Handle("/download/{id}/{filename}", NewDownloadHandler(pipeline)).Methods(http.MethodGet, http.MethodHead)
	router.Handle("/download/{filename}", NewDownloadHandler(pipeline)).Methods(http.MethodGet, http.MethodHead)

	return router
}
