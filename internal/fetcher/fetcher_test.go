package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sigwatch/internal/fetcher"
)

func TestFetch_Returns200WithBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sigwatch-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	f := fetcher.New("sigwatch-test/1.0", 50, 10)
	res, err := f.Fetch(context.Background(), srv.URL, "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, `{"ok":true}`, string(res.Body))
	assert.Equal(t, `"abc123"`, res.ETag)
	assert.Equal(t, 60, res.MaxAgeSeconds)
}

func TestFetch_ConditionalRequestSends304(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, `"etag-1"`, r.Header.Get("If-None-Match"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := fetcher.New("sigwatch-test/1.0", 50, 10)
	res, err := f.Fetch(context.Background(), srv.URL, `"etag-1"`, "", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotModified, res.Status)
	assert.Nil(t, res.Body)
}

func TestFetch_SurfacesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := fetcher.New("sigwatch-test/1.0", 50, 10)
	res, err := f.Fetch(context.Background(), srv.URL, "", "", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusTooManyRequests, res.Status)
	assert.Equal(t, 120, res.RetryAfterSeconds)
}
