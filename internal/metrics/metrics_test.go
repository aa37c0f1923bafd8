package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesCounters(t *testing.T) {
	m := New()
	m.TradesInferred.WithLabelValues("live", "buy").Inc()
	m.RPCRetries.Add(2)
	m.Subscribers.Set(3)

	// a second instance must not collide on registration
	_ = New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pool_streamer_trades_inferred_total{source="live",type="buy"} 1`)
	assert.Contains(t, string(body), "pool_streamer_rpc_retries_total 2")
	assert.Contains(t, string(body), "pool_streamer_stream_subscribers 3")
}
