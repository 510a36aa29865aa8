package util

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var (
	httpClientOnce sync.Once
	httpClient     *http.Client
)

// HTTPClient returns the shared HTTP client used for outgoing requests.
// Deadlines for individual calls come from the request context; the
// client-level timeout only guards against connections that never finish.
func HTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		httpClient = &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	})
	return httpClient
}

// ErrorResponse is the JSON body of every error reported to a caller
type ErrorResponse struct {
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON body with the given status code
func WriteJSON(writer http.ResponseWriter, status int, body interface{}) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(body)
}

// HTTPError logs and writes out a JSON error response
func HTTPError(request *http.Request, writer http.ResponseWriter, ctx LogContext, message string, status int) {
	HTTPKindError(request, writer, ctx, "", message, status)
}

// HTTPKindError is HTTPError for errors that carry a machine-readable kind
func HTTPKindError(request *http.Request, writer http.ResponseWriter, ctx LogContext, kind string, message string, status int) {
	LogAudit(ctx, LogAuditInput{
		Actor:    request.URL.String(),
		Action:   request.Method + " response",
		Actee:    request.RemoteAddr,
		Message:  message,
		Severity: WARNING,
	})
	WriteJSON(writer, status, ErrorResponse{Status: "error", Kind: kind, Message: message})
}
