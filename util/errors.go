package util

import (
	"fmt"
	"log/slog"
)

// Error is an error that carries both a detailed message for the logs and
// a simple message for the caller
type Error struct {
	LogMsg     string
	SimpleMsg  string
	Response   string
	URL        string
	HTTPStatus int
	cause      error
}

func (err Error) Error() string {
	if err.SimpleMsg != "" {
		return err.SimpleMsg
	}
	return err.LogMsg
}

// Unwrap returns the underlying cause, if any
func (err Error) Unwrap() error {
	return err.cause
}

// Log writes the full error out to the log and returns it as an error
func (err Error) Log(ctx LogContext, prefix string) error {
	message := err.LogMsg
	if message == "" {
		message = err.SimpleMsg
	}
	if prefix != "" {
		message = prefix + ": " + message
	}
	attrs := append(contextAttrs(ctx),
		slog.String("url", err.URL),
		slog.Int("httpStatus", err.HTTPStatus),
		slog.String("response", err.Response),
	)
	currentLogger().Error(message, attrs...)
	return err
}

// HTTPErr is an error that knows what HTTP status it should be reported with
type HTTPErr struct {
	Status  int
	Message string
}

func (err HTTPErr) Error() string {
	return fmt.Sprintf("%d: %s", err.Status, err.Message)
}
