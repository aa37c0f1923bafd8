package poolinfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_RelaysBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ids=POOL", r.URL.RawQuery)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"POOL"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/pools/info/ids?ids=POOL", time.Second)
	resp, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.ContentType)
	assert.JSONEq(t, `{"success":true,"data":[{"id":"POOL"}]}`, string(resp.Body))
	stats := c.GetStats()
	assert.Equal(t, http.StatusOK, stats.LastStatus)
	_, err = time.Parse(time.RFC3339, stats.LastUpdated)
	assert.NoError(t, err)
}

func TestFetch_NonOKIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("maintenance"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	resp, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "maintenance", string(resp.Body))
	assert.Equal(t, http.StatusServiceUnavailable, c.GetStats().LastStatus)
}

func TestFetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pool info")
	assert.Equal(t, Stats{}, c.GetStats())
}
