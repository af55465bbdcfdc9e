package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/config"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Worker.Root = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	srv, err := NewServer(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("X-Trace-ID"), "trace_"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `fsbridge_http_requests_total{method="GET",path="/health",status="200"} 1`)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
	})

	first, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	first.Body.Close()
	second, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	second.Body.Close()

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func getFrom(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitScope(t *testing.T) {
	for _, global := range []bool{false, true} {
		cfg := config.Default()
		cfg.Worker.Root = t.TempDir()
		cfg.RateLimit.RequestsPerSecond = 1
		cfg.RateLimit.Burst = 1
		cfg.RateLimit.Global = global
		srv, err := NewServer(cfg, nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

		assert.Equal(t, http.StatusOK, getFrom(srv.Handler(), "10.0.0.1:1000"))
		want := http.StatusOK
		if global {
			// the first client used up the shared bucket
			want = http.StatusTooManyRequests
		}
		assert.Equal(t, want, getFrom(srv.Handler(), "10.0.0.2:1000"), "global=%v", global)
	}
}

func TestWebSocketCall(t *testing.T) {
	ts := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	params, err := channel.Marshal(types.PathRequest{Path: "/"})
	require.NoError(t, err)
	payload, err := channel.EncodeFrame(&channel.Frame{
		Kind:   channel.KindCall,
		ID:     "1",
		Method: types.MethodExists,
		Params: params,
	}, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	reply, err := channel.DecodeFrame(raw)
	require.NoError(t, err)

	assert.Equal(t, channel.KindResult, reply.Kind)
	assert.Equal(t, "1", reply.ID)
	assert.Nil(t, reply.Error)
	assert.JSONEq(t, "true", string(reply.Result))
}
