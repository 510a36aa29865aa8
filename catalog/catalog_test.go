package catalog

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/venicegeo/bf-s2-tile-broker/model"
	"github.com/venicegeo/bf-s2-tile-broker/util"
)

var mockQuery = model.Query{
	Longitude:     10.0,
	Latitude:      45.0,
	StartDate:     time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	EndDate:       time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC),
	MaxCloudCover: 100,
}

var mockScenes = []model.Scene{{ImageID: "a", TileID: "32TPQ"}, {ImageID: "b", TileID: "32TQQ"}}

func TestMain(m *testing.M) {
	util.SetLogOutput(&bytes.Buffer{})
	os.Exit(m.Run())
}

func getRequest(url string) RequestFactory {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, "GET", url, nil)
	}
}

func fastRequester(maxRetries int) *Requester {
	r := NewRequester("test-catalog", nil, 0, maxRetries)
	r.InitialInterval = time.Millisecond
	return r
}

func TestRequester_RetriesTransientFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	body, err := fastRequester(3).Do(context.Background(), getRequest(server.URL))

	assert.Nil(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequester_SharedBetweenGoroutines(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1)%2 == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()
	requester := fastRequester(8)

	errs := make([]error, 8)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = requester.Do(context.Background(), getRequest(server.URL))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.Nil(t, err)
	}
	assert.NotEmpty(t, requester.LogContext.SessionID())
}

func TestRequester_GivesUpAfterMaxTries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := fastRequester(2).Do(context.Background(), getRequest(server.URL))

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequester_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := fastRequester(5).Do(context.Background(), getRequest(server.URL))

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRequester_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := fastRequester(5).Do(ctx, getRequest(server.URL))

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
}

func TestTimeout_BoundsSlowCatalog(t *testing.T) {
	slow := Func(func(ctx context.Context, query model.Query) ([]model.Scene, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	start := time.Now()
	_, err := Timeout{Catalog: slow, Duration: 20 * time.Millisecond}.Search(context.Background(), mockQuery)

	assert.NotNil(t, err)
	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Contains(t, err.Error(), "timed out")
	assert.True(t, time.Since(start) < time.Second)
}

func TestCoalescing_SharesIdenticalQueries(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	backend := Func(func(ctx context.Context, query model.Query) ([]model.Scene, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return mockScenes, nil
	})
	coalescing := NewCoalescing(backend)

	var wg sync.WaitGroup
	results := make([][]model.Scene, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = coalescing.Search(context.Background(), mockQuery)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, scenes := range results {
		assert.Equal(t, mockScenes, scenes)
	}

	// Callers get their own copy
	results[0][0].TileID = "mutated"
	assert.Equal(t, "32TPQ", results[1][0].TileID)
}

func TestCoalescing_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	backend := Func(func(ctx context.Context, query model.Query) ([]model.Scene, error) {
		<-release
		return mockScenes, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCoalescing(backend).Search(ctx, mockQuery)

	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
}

func TestWrap_PassesErrorsThrough(t *testing.T) {
	failing := Func(func(ctx context.Context, query model.Query) ([]model.Scene, error) {
		return nil, model.Errorf(model.RemoteServiceError, "quota exceeded")
	})

	_, err := Wrap(failing, time.Second).Search(context.Background(), mockQuery)

	assert.Equal(t, model.RemoteServiceError, model.KindOf(err))
	assert.Equal(t, "quota exceeded", err.Error())
}
