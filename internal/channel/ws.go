package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/resilience"
)

const writeTimeout = 10 * time.Second

// Options configures a WSChannel.
type Options struct {
	URL    string
	Dialer *websocket.Dialer
	// CompressThreshold is the data size above which outgoing payloads are
	// zstd-compressed; 0 disables compression.
	CompressThreshold int
	Backoff           *resilience.Backoff
	Breaker           *resilience.Breaker

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

type pendingCall struct {
	frame *Frame
	timer *monitoring.Timer
	sent  bool
	done  chan callResult
}

type callResult struct {
	frame *Frame
	err   error
}

// WSChannel is a Channel over a gorilla websocket connection that
// reconnects on its own.
type WSChannel struct {
	url       string
	dialer    *websocket.Dialer
	threshold int
	backoff   *resilience.Backoff
	breaker   *resilience.Breaker
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	mu        sync.Mutex
	state     State
	conn      *websocket.Conn
	closed    bool
	calls     map[string]*pendingCall
	buffer    []*pendingCall
	handlers  map[string]map[uint64]EventHandler
	listeners map[uint64]func(State)
	nextID    uint64

	stop chan struct{}
	done chan struct{}
}

// Dial creates a channel and starts connecting to opts.URL in the
// background. It returns immediately in the Connecting state.
func Dial(opts Options) *WSChannel {
	c := &WSChannel{
		url:       opts.URL,
		dialer:    opts.Dialer,
		threshold: opts.CompressThreshold,
		backoff:   opts.Backoff,
		breaker:   opts.Breaker,
		logger:    logging.OrNop(opts.Logger).Named("channel"),
		metrics:   opts.Metrics,
		calls:     make(map[string]*pendingCall),
		handlers:  make(map[string]map[uint64]EventHandler),
		listeners: make(map[uint64]func(State)),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.backoff == nil {
		c.backoff = resilience.DefaultBackoff()
	}
	if c.breaker == nil {
		c.breaker = resilience.New("worker", resilience.Settings{Logger: opts.Logger})
	}
	go c.loop()
	return c
}

// State returns the current connection state.
func (c *WSChannel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Call implements Channel.
func (c *WSChannel) Call(ctx context.Context, method string, params any, data []byte) (*Response, error) {
	rawParams, err := Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", method, err)
	}

	call := &pendingCall{
		frame: &Frame{
			Kind:   KindCall,
			ID:     uuid.NewString(),
			Method: method,
			Params: rawParams,
			Data:   data,
		},
		timer: monitoring.NewTimer(c.metrics, method),
		done:  make(chan callResult, 1),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.calls[call.frame.ID] = call
	if c.state == Ready {
		c.sendLocked(call)
	} else {
		c.buffer = append(c.buffer, call)
	}
	c.mu.Unlock()

	select {
	case res := <-call.done:
		return c.finish(call, res)
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.calls, call.frame.ID)
		c.removeBufferedLocked(call)
		c.mu.Unlock()
		// the outcome may have raced the cancellation
		select {
		case res := <-call.done:
			return c.finish(call, res)
		default:
		}
		call.timer.Stop("cancelled")
		return nil, ctx.Err()
	}
}

func (c *WSChannel) finish(call *pendingCall, res callResult) (*Response, error) {
	if res.err != nil {
		call.timer.Stop("error")
		return nil, res.err
	}
	if res.frame.Error != nil {
		call.timer.Stop("error")
		return nil, res.frame.Error
	}
	call.timer.Stop("ok")
	return &Response{Result: res.frame.Result, Data: res.frame.Data}, nil
}

// Subscribe implements Channel.
func (c *WSChannel) Subscribe(event string, handler EventHandler) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[uint64]EventHandler)
	}
	c.handlers[event][id] = handler
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[event], id)
	}
}

// OnStateChange implements Channel. Listeners run on the connection
// goroutine, one transition at a time.
func (c *WSChannel) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops reconnecting, drops the connection and fails every call that
// has not completed yet.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.stop)
	var err error
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	}
	c.failLocked(ErrClosed, func(*pendingCall) bool { return true })
	c.mu.Unlock()

	<-c.done
	return err
}

func (c *WSChannel) loop() {
	defer close(c.done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		if c.isClosed() {
			c.transition(Disconnected)
			return
		}
		c.transition(Connecting)

		conn, err := resilience.Execute(c.breaker, func() (*websocket.Conn, error) {
			conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
			return conn, err
		})
		if err != nil {
			c.logger.Warn("Failed to connect to worker", zap.String("url", c.url), zap.Error(err))
			c.transition(Disconnected)

			wait := c.backoff.Next()
			if open := c.breaker.RetryAfter(); open > wait {
				wait = open
			}
			select {
			case <-c.stop:
				return
			case <-time.After(wait):
			}
			continue
		}

		c.backoff.Reset()
		if !c.attach(conn) {
			_ = conn.Close()
			return
		}
		c.readLoop(conn)
		c.detach()
	}
}

func (c *WSChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// attach installs conn, flushes buffered calls in order and reports Ready.
func (c *WSChannel) attach(conn *websocket.Conn) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.state = Ready
	buffered := c.buffer
	c.buffer = nil
	for _, call := range buffered {
		c.sendLocked(call)
	}
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Info("Channel state changed", zap.Stringer("state", Ready), zap.Int("flushed", len(buffered)))
	c.metrics.RecordState(Ready.String())
	for _, fn := range listeners {
		fn(Ready)
	}
	return true
}

// detach drops the connection and fails the calls that were on the wire.
func (c *WSChannel) detach() {
	c.mu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	failed := c.failLocked(ErrConnectionClosed, func(call *pendingCall) bool { return call.sent })
	c.mu.Unlock()

	if failed > 0 {
		c.logger.Warn("Connection lost with calls in flight", zap.Int("failed", failed))
	}
	c.transition(Disconnected)
}

func (c *WSChannel) transition(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.logger.Info("Channel state changed", zap.Stringer("state", state))
	c.metrics.RecordState(state.String())
	for _, fn := range listeners {
		fn(state)
	}
}

func (c *WSChannel) listenersLocked() []func(State) {
	out := make([]func(State), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

// sendLocked writes call on the current connection. A write failure leaves
// the call marked as sent; the read loop notices the broken connection and
// fails it with the rest.
func (c *WSChannel) sendLocked(call *pendingCall) {
	call.sent = true
	payload, err := EncodeFrame(call.frame, c.threshold)
	if err != nil {
		delete(c.calls, call.frame.ID)
		call.done <- callResult{err: err}
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Warn("Failed to send call", zap.String("method", call.frame.Method), zap.Error(err))
		_ = c.conn.Close()
	}
}

func (c *WSChannel) removeBufferedLocked(call *pendingCall) {
	for i, queued := range c.buffer {
		if queued == call {
			c.buffer = append(c.buffer[:i], c.buffer[i+1:]...)
			return
		}
	}
}

func (c *WSChannel) failLocked(err error, match func(*pendingCall) bool) int {
	failed := 0
	for id, call := range c.calls {
		if !match(call) {
			continue
		}
		delete(c.calls, id)
		call.done <- callResult{err: err}
		failed++
	}
	if errors.Is(err, ErrClosed) {
		c.buffer = nil
	}
	return failed
}

func (c *WSChannel) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Warn("Worker connection lost", zap.Error(err))
			}
			return
		}

		frame, err := DecodeFrame(payload)
		if err != nil {
			c.logger.Warn("Dropping malformed frame", zap.Error(err))
			continue
		}

		switch frame.Kind {
		case KindResult:
			c.resolve(frame)
		case KindEvent:
			c.dispatch(frame)
		default:
			c.logger.Debug("Ignoring frame", zap.String("kind", frame.Kind))
		}
	}
}

func (c *WSChannel) resolve(frame *Frame) {
	c.mu.Lock()
	call, ok := c.calls[frame.ID]
	if ok {
		delete(c.calls, frame.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("Result for unknown call", zap.String("id", frame.ID))
		return
	}
	call.done <- callResult{frame: frame}
}

func (c *WSChannel) dispatch(frame *Frame) {
	c.mu.Lock()
	handlers := make([]EventHandler, 0, len(c.handlers[frame.Event]))
	for _, h := range c.handlers[frame.Event] {
		handlers = append(handlers, h)
	}
	c.mu.Unlock()

	for _, h := range handlers {
		h(frame.Args)
	}
}
