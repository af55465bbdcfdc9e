// Package bridge is the filesystem API of the UI process. Every operation is
// one call to the worker, admitted through the scheduler, decoded with the
// codec and failed with an *fserrors.Error.
//
// Watch notifications pushed by the worker are coalesced before they reach
// the OnChange callback. When the worker connection drops, OnOffline fires
// once; watches registered before the drop are gone and must be added
// again once the channel is Ready.
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/scheduler"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/watcher"
)

// Options configures a Bridge.
type Options struct {
	// Encoding selects how stat records travel for stat, readdir and mkdir.
	// codec.Binary uses the dense binary layout.
	Encoding codec.Encoding
	// Window is the coalescing window of change notifications.
	Window time.Duration
	// OnChange receives coalesced changes of watched paths.
	OnChange func(watcher.Change)
	// OnOffline fires once each time the worker connection is lost.
	OnOffline func()

	Logger  *logging.Logger
	Metrics *monitoring.Metrics
}

// Bridge is the filesystem facade. It does not own the channel or the
// scheduler; Close releases only what the bridge itself created.
type Bridge struct {
	channel    channel.Channel
	scheduler  *scheduler.Scheduler
	translator *fserrors.Translator
	coalescer  *watcher.Coalescer
	encoding   codec.Encoding
	logger     *logging.Logger

	// ctx scopes fire-and-forget calls; Close abandons those still queued.
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe []func()
	closeOnce   sync.Once
}

// New creates a bridge over ch. Calls are admitted through sched.
func New(ch channel.Channel, sched *scheduler.Scheduler, opts Options) *Bridge {
	b := &Bridge{
		channel:    ch,
		scheduler:  sched,
		translator: fserrors.NewTranslator(opts.Logger),
		encoding:   opts.Encoding,
		logger:     logging.OrNop(opts.Logger).Named("bridge"),
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.coalescer = watcher.New(watcher.Options{
		Window:    opts.Window,
		Stat:      b.Stat,
		OnChange:  opts.OnChange,
		OnOffline: opts.OnOffline,
		Logger:    opts.Logger,
		Metrics:   opts.Metrics,
	})

	b.unsubscribe = append(b.unsubscribe,
		ch.Subscribe(types.EventFileChanged, b.handleChange),
		ch.OnStateChange(b.handleState),
	)
	if ch.State() == channel.Ready {
		b.coalescer.Connected()
	}
	return b
}

// Encoding returns the stat encoding in use.
func (b *Bridge) Encoding() codec.Encoding { return b.encoding }

// Close stops delivering changes and abandons fire-and-forget calls that
// are still queued. Calls already admitted run to completion.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		for _, unsubscribe := range b.unsubscribe {
			unsubscribe()
		}
		b.coalescer.Close()
		b.cancel()
	})
}

func (b *Bridge) handleChange(args json.RawMessage) {
	var ev types.ChangeEvent
	if err := channel.Unmarshal(args, &ev); err != nil {
		b.logger.Warn("Dropping malformed change event", zap.Error(err))
		return
	}
	b.coalescer.Notify(watcher.Notification{
		Path:     ev.Path,
		Kind:     watcher.EventKind(ev.Kind),
		Filename: ev.Filename,
	})
}

func (b *Bridge) handleState(state channel.State) {
	switch state {
	case channel.Ready:
		b.coalescer.Connected()
	case channel.Disconnected:
		b.coalescer.Disconnected()
	}
}

// call runs one worker call through the scheduler and translates its
// failure for op on path. A call abandoned while queued is Unknown and
// still matches context.Canceled or context.DeadlineExceeded.
func (b *Bridge) call(ctx context.Context, op, path string, params any, data []byte) (*channel.Response, error) {
	resp, err := scheduler.Run(ctx, b.scheduler, func(ctx context.Context) (*channel.Response, error) {
		return b.channel.Call(ctx, op, params, data)
	})
	if err != nil {
		if fserrors.IsContextError(err) {
			b.logger.Debug("Call abandoned before admission",
				zap.String("op", op),
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return nil, b.translator.Translate(op, path, err)
	}
	return resp, nil
}

// malformed reports a response the bridge cannot decode.
func malformed(op, path string, err error) error {
	return fserrors.New(fserrors.KindUnknown, op, path, err)
}

// fireAndForget queues a call in submission order without waiting for its
// outcome. Failures are logged.
func (b *Bridge) fireAndForget(op, path string, params any) {
	b.scheduler.Submit(func() {
		if b.ctx.Err() != nil {
			return
		}
		_, err := b.channel.Call(b.ctx, op, params, nil)
		if err != nil && !fserrors.IsContextError(err) {
			b.logger.Debug("Fire-and-forget call failed",
				zap.String("op", op),
				zap.String("path", path),
				zap.Error(b.translator.Translate(op, path, err)),
			)
		}
	})
}
