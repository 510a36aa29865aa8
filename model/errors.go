package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of failure categories the broker reports
type ErrorKind string

// Error kinds
const (
	ValidationError    ErrorKind = "validation"
	NoDataError        ErrorKind = "no_data"
	RemoteServiceError ErrorKind = "remote_service"
	NotFoundError      ErrorKind = "not_found"
	InternalError      ErrorKind = "internal"
)

// HTTPStatus returns the status code a failure of this kind is reported with
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case ValidationError:
		return http.StatusBadRequest
	case NoDataError, NotFoundError:
		return http.StatusNotFound
	case RemoteServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BrokerError is an error tagged with its kind
type BrokerError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates a BrokerError wrapping an optional cause
func NewError(kind ErrorKind, message string, cause error) *BrokerError {
	return &BrokerError{Kind: kind, Message: message, Err: cause}
}

// Errorf creates a BrokerError with a formatted message and no cause
func Errorf(kind ErrorKind, format string, args ...interface{}) *BrokerError {
	return &BrokerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *BrokerError) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return e.Err.Error()
	case e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	default:
		return e.Message
	}
}

// Unwrap returns the cause of the error
func (e *BrokerError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first BrokerError in err's chain, or
// InternalError for anything else
func KindOf(err error) ErrorKind {
	var brokerErr *BrokerError
	if errors.As(err, &brokerErr) {
		return brokerErr.Kind
	}
	return InternalError
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
