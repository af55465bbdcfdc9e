// Package watcher turns the worker's raw change notifications into at most
// one callback per path per coalescing window.
package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
)

// DefaultWindow is the coalescing window used when none is configured.
const DefaultWindow = 200 * time.Millisecond

// EventKind classifies a raw notification.
type EventKind string

const (
	// ContentChanged means an existing file's content changed.
	ContentChanged EventKind = "content-changed"
	// Structural means an entry was created, removed or renamed.
	Structural EventKind = "structural"
)

// Notification is a raw change notification as the worker reports it.
type Notification struct {
	Path     string    `json:"path"`
	Kind     EventKind `json:"kind"`
	Filename string    `json:"filename,omitempty"`
}

// Change is delivered once per changed path when a window flushes. Stat is
// set only for paths that saw a content change.
type Change struct {
	Path string
	Stat *codec.StatRecord
}

// StatFunc fetches fresh metadata for a changed path.
type StatFunc func(ctx context.Context, path string) (codec.StatRecord, error)

// Options configures a Coalescer.
type Options struct {
	Window    time.Duration
	Stat      StatFunc
	OnChange  func(Change)
	OnOffline func()

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Coalescer batches notifications into a pending map that flushes once per
// window. A single mutex guards all of its state.
type Coalescer struct {
	window    time.Duration
	stat      StatFunc
	onChange  func(Change)
	onOffline func()
	logger    *logging.Logger
	metrics   *monitoring.Metrics

	mu      sync.Mutex
	pending map[string]bool
	timer   *time.Timer
	gen     uint64
	online  bool
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a coalescer. A zero window means DefaultWindow.
func New(opts Options) *Coalescer {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coalescer{
		window:    opts.Window,
		stat:      opts.Stat,
		onChange:  opts.OnChange,
		onOffline: opts.OnOffline,
		logger:    logging.OrNop(opts.Logger).Named("watcher"),
		metrics:   opts.Metrics,
		pending:   make(map[string]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	if c.window <= 0 {
		c.window = DefaultWindow
	}
	if c.onChange == nil {
		c.onChange = func(Change) {}
	}
	return c
}

// Notify registers one raw notification.
func (c *Coalescer) Notify(n Notification) {
	switch n.Kind {
	case ContentChanged:
		if n.Filename == "" {
			return
		}
		c.register(joinChild(n.Path, n.Filename), true)
	case Structural:
		c.register(n.Path, false)
	default:
		c.logger.Debug("Ignoring notification", zap.String("kind", string(n.Kind)), zap.String("path", n.Path))
	}
}

func (c *Coalescer) register(path string, needsStats bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	c.pending[path] = c.pending[path] || needsStats
	if c.timer == nil {
		gen := c.gen
		c.timer = time.AfterFunc(c.window, func() { c.flush(gen) })
	}
}

// Pending returns a snapshot of the current window.
func (c *Coalescer) Pending() map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]bool, len(c.pending))
	for path, needsStats := range c.pending {
		out[path] = needsStats
	}
	return out
}

func (c *Coalescer) flush(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	batch := c.pending
	c.pending = make(map[string]bool)
	c.timer = nil
	c.gen++
	c.mu.Unlock()

	for path, needsStats := range batch {
		if !needsStats || c.stat == nil {
			c.metrics.RecordFlush("plain")
			c.onChange(Change{Path: path})
			continue
		}
		go c.flushWithStat(path)
	}
}

func (c *Coalescer) flushWithStat(path string) {
	rec, err := c.stat(c.ctx, path)
	if c.ctx.Err() != nil {
		return
	}
	if err != nil {
		c.metrics.IncStatFailures()
		c.logger.Warn("Dropping change after stat failure", zap.String("path", path), zap.Error(err))
		return
	}
	c.metrics.RecordFlush("stat")
	c.onChange(Change{Path: path, Stat: &rec})
}

// Connected re-arms the offline notification.
func (c *Coalescer) Connected() {
	c.mu.Lock()
	c.online = true
	c.mu.Unlock()
}

// Disconnected reports offline once per lost connection. Calls before the
// first Connected, or repeated calls, do nothing.
func (c *Coalescer) Disconnected() {
	c.mu.Lock()
	fire := c.online && !c.closed
	c.online = false
	c.mu.Unlock()

	if fire && c.onOffline != nil {
		c.logger.Info("Worker went offline")
		c.onOffline()
	}
}

// Close stops the window timer and drops pending changes. Stats already in
// flight finish without firing callbacks.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
	c.cancel()
}

func joinChild(parent, name string) string {
	if parent == "" || strings.HasSuffix(parent, "/") {
		return parent + name
	}
	return parent + "/" + name
}
