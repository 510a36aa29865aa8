package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/venicegeo/bf-s2-tile-broker/metrics"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
	"golang.org/x/time/rate"
)

// maxResponseBytes caps how much of a catalog response is read into memory
const maxResponseBytes = 64 << 20

// Requester performs HTTP requests against a catalog API, waiting on a
// rate limiter before each attempt and retrying transient failures
// (transport errors, 429 and 5xx responses) with exponential backoff.
type Requester struct {
	Name            string
	Client          *http.Client
	Limiter         *rate.Limiter
	MaxTries        uint
	InitialInterval time.Duration
	LogContext      util.LogContext
}

// NewRequester creates a requester allowing requestsPerSecond requests and
// maxRetries retries after the first attempt
func NewRequester(name string, client *http.Client, requestsPerSecond float64, maxRetries int) *Requester {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	if client == nil {
		client = util.HTTPClient()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Requester{
		Name:            name,
		Client:          client,
		Limiter:         limiter,
		MaxTries:        uint(maxRetries) + 1,
		InitialInterval: 500 * time.Millisecond,
		LogContext:      util.NewBasicLogContext(),
	}
}

// RequestFactory builds a fresh request for every attempt, so request
// bodies can be re-read
type RequestFactory func(ctx context.Context) (*http.Request, error)

// Do runs the request and returns the body of the first successful (2xx)
// response. Every returned error is a RemoteServiceError.
func (r *Requester) Do(ctx context.Context, newRequest RequestFactory) ([]byte, error) {
	policy := backoff.NewExponentialBackOff()
	if r.InitialInterval > 0 {
		policy.InitialInterval = r.InitialInterval
	}
	maxTries := r.MaxTries
	if maxTries == 0 {
		maxTries = 1
	}

	attempt := 0
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		return r.attempt(ctx, newRequest, attempt)
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(maxTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			metrics.CatalogRetries.WithLabelValues(r.Name).Inc()
			util.LogAlert(r.LogContext, fmt.Sprintf("Catalog request to %s failed (%v); retrying in %v", r.Name, err, wait))
		}),
	)
	if err == nil {
		return body, nil
	}
	if model.IsKind(err, model.RemoteServiceError) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, model.NewError(model.RemoteServiceError, "Catalog request cancelled or timed out", ctxErr)
	}
	return nil, model.NewError(model.RemoteServiceError, "Catalog request failed", err)
}

func (r *Requester) attempt(ctx context.Context, newRequest RequestFactory, attempt int) ([]byte, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(model.NewError(model.RemoteServiceError, "Catalog request cancelled while rate limited", err))
		}
	}

	request, err := newRequest(ctx)
	if err != nil {
		return nil, backoff.Permanent(model.NewError(model.RemoteServiceError, "Failed to build catalog request", err))
	}
	util.LogAudit(r.LogContext, util.LogAuditInput{
		Actor:    "catalog/" + r.Name,
		Action:   request.Method,
		Actee:    request.URL.String(),
		Message:  fmt.Sprintf("Requesting scenes from %s (attempt %d)", r.Name, attempt),
		Severity: util.INFO,
	})

	response, err := r.Client.Do(request)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(model.NewError(model.RemoteServiceError, "Catalog request cancelled or timed out", err))
		}
		return nil, model.NewError(model.RemoteServiceError, fmt.Sprintf("Failed to reach %s", r.Name), err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, model.NewError(model.RemoteServiceError, fmt.Sprintf("Failed to read response from %s", r.Name), err)
	}

	switch {
	case response.StatusCode == http.StatusTooManyRequests || response.StatusCode >= 500:
		plErr := util.Error{LogMsg: fmt.Sprintf("Catalog %s responded %s", r.Name, response.Status),
			SimpleMsg:  fmt.Sprintf("%s is unavailable or rate limiting requests (%s)", r.Name, response.Status),
			Response:   string(body),
			URL:        request.URL.String(),
			HTTPStatus: response.StatusCode}
		return nil, model.NewError(model.RemoteServiceError, "", plErr.Log(r.LogContext, ""))
	case response.StatusCode >= 400:
		plErr := util.Error{LogMsg: fmt.Sprintf("Catalog %s rejected the request: %s", r.Name, response.Status),
			SimpleMsg:  fmt.Sprintf("%s rejected the request (%s)", r.Name, response.Status),
			Response:   string(body),
			URL:        request.URL.String(),
			HTTPStatus: response.StatusCode}
		return nil, backoff.Permanent(model.NewError(model.RemoteServiceError, "", plErr.Log(r.LogContext, "")))
	default:
		//no op
	}
	return body, nil
}
