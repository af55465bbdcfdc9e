package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/worker"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the bridge is a local process, not a browser
	},
}

// Handler serves bridge connections on the worker.
type Handler struct {
	service   *worker.Service
	threshold int
	logger    *logging.Logger
	metrics   *monitoring.Metrics
	tracer    *tracing.Tracer
}

// NewHandler creates a handler. Payloads larger than compressThreshold
// bytes are zstd-compressed; 0 disables compression.
func NewHandler(service *worker.Service, compressThreshold int, logger *logging.Logger, metrics *monitoring.Metrics) *Handler {
	return &Handler{
		service:   service,
		threshold: compressThreshold,
		logger:    logging.OrNop(logger).Named("ws"),
		metrics:   metrics,
	}
}

// WithTracer records a span for every call served.
func (h *Handler) WithTracer(tracer *tracing.Tracer) *Handler {
	h.tracer = tracer
	return h
}

// session is one bridge connection. Writes are serialized because gorilla
// connections allow a single concurrent writer.
type session struct {
	id        id.ConnectionID
	conn      *websocket.Conn
	threshold int
	logger    *logging.Logger

	writeMu sync.Mutex
}

func (s *session) send(f *channel.Frame) error {
	payload, err := channel.EncodeFrame(f, s.threshold)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// HandleConnection upgrades the request and serves calls until the bridge
// disconnects. Calls run concurrently; the bridge bounds how many.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s := &session{
		id:        id.NewConnectionID(),
		conn:      conn,
		threshold: h.threshold,
	}
	s.logger = h.logger.With(zap.Stringer("conn", s.id))

	watches, err := worker.NewWatches(h.service.Sandbox(), func(ev types.ChangeEvent) {
		args, err := channel.Marshal(ev)
		if err != nil {
			return
		}
		if err := s.send(&channel.Frame{Kind: channel.KindEvent, Event: types.EventFileChanged, Args: args}); err != nil {
			s.logger.Debug("Failed to push change", zap.Error(err))
		}
	}, s.logger)
	if err != nil {
		s.logger.Error("Failed to start watcher", zap.Error(err))
		return
	}
	defer watches.Close()

	h.metrics.IncConnections()
	defer h.metrics.DecConnections()
	s.logger.Info("Bridge connected", zap.String("remote", c.ClientIP()))

	ctx, cancel := context.WithCancel(c.Request.Context())
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		s.logger.Info("Bridge disconnected")
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WebSocket read error", zap.Error(err))
			}
			return
		}

		frame, err := channel.DecodeFrame(payload)
		if err != nil {
			s.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}
		if frame.Kind != channel.KindCall {
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			h.serve(ctx, s, watches, frame)
		}()
	}
}

func (h *Handler) serve(ctx context.Context, s *session, watches *worker.Watches, call *channel.Frame) {
	s.logger.Debug("Command", zap.String("method", call.Method), zap.String("id", call.ID))
	var span *tracing.Span
	if h.tracer != nil {
		span, ctx = h.tracer.StartSpan(ctx, "worker."+call.Method)
		span.SetTag("conn", s.id.String())
	}
	reply := h.service.Dispatch(ctx, watches, call)
	if span != nil {
		var err error
		if reply.Error != nil {
			err = reply.Error
		}
		h.tracer.End(span, err)
	}

	status := "ok"
	if reply.Error != nil {
		status = "error"
	}
	h.metrics.RecordCommand(call.Method, status)

	if err := s.send(reply); err != nil {
		s.logger.Debug("Failed to send result", zap.String("method", call.Method), zap.Error(err))
	}
}
