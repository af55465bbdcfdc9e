package ws

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/worker"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func dialHandler(t *testing.T, threshold int) (*websocket.Conn, string, *monitoring.Metrics) {
	t.Helper()
	root := t.TempDir()
	sandbox, err := paths.NewSandbox(root)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	h := NewHandler(worker.NewService(sandbox, nil), threshold, nil, metrics)
	router := gin.New()
	router.GET("/ws", h.HandleConnection)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, root, metrics
}

func send(t *testing.T, conn *websocket.Conn, id, method string, params any) {
	t.Helper()
	raw, err := channel.Marshal(params)
	require.NoError(t, err)
	payload, err := channel.EncodeFrame(&channel.Frame{Kind: channel.KindCall, ID: id, Method: method, Params: raw}, 0)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
}

func receive(t *testing.T, conn *websocket.Conn) *channel.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := channel.DecodeFrame(raw)
	require.NoError(t, err)
	return f
}

// receiveKind skips frames of other kinds.
func receiveKind(t *testing.T, conn *websocket.Conn, kind string) *channel.Frame {
	t.Helper()
	for {
		if f := receive(t, conn); f.Kind == kind {
			return f
		}
	}
}

func TestHandlerServesCalls(t *testing.T) {
	conn, root, metrics := dialHandler(t, 0)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hi"), 0o644))

	send(t, conn, "1", types.MethodExists, types.PathRequest{Path: "/a.txt"})
	reply := receiveKind(t, conn, channel.KindResult)
	assert.Equal(t, "1", reply.ID)
	assert.JSONEq(t, "true", string(reply.Result))

	send(t, conn, "2", types.MethodStat, types.PathRequest{Path: "/missing"})
	reply = receiveKind(t, conn, channel.KindResult)
	assert.Equal(t, "2", reply.ID)
	require.NotNil(t, reply.Error)
	assert.Equal(t, "ENOENT", reply.Error.CauseCode())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerConnections))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerCommands.WithLabelValues(types.MethodExists, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.WorkerCommands.WithLabelValues(types.MethodStat, "error")))
}

func TestHandlerCompressesLargeData(t *testing.T) {
	conn, root, _ := dialHandler(t, 16)
	content := strings.Repeat("compressible ", 100)
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.txt"), []byte(content), 0o644))

	send(t, conn, "1", types.MethodReadFile, types.PathRequest{Path: "/big.txt"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"zstd":true`)

	f, err := channel.DecodeFrame(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(f.Data), content))
}

func TestHandlerPushesChanges(t *testing.T) {
	conn, root, _ := dialHandler(t, 0)

	send(t, conn, "1", types.MethodWatchPath, types.WatchRequest{Path: "/"})
	reply := receiveKind(t, conn, channel.KindResult)
	require.Nil(t, reply.Error)

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.txt"), []byte("x"), 0o644))

	ev := receiveKind(t, conn, channel.KindEvent)
	assert.Equal(t, types.EventFileChanged, ev.Event)
	var change types.ChangeEvent
	require.NoError(t, channel.Unmarshal(ev.Args, &change))
	assert.Equal(t, "/", change.Path)
}
