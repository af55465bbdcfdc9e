// Package channel carries calls and events between the bridge and the
// worker process.
//
// A channel moves through Disconnected, Connecting and Ready. Calls made
// while it is not Ready are buffered and sent in order once it is. When an
// established connection drops, every call already sent and still
// unanswered fails with ErrConnectionClosed.
package channel

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrConnectionClosed fails calls that were on the wire when the
	// connection dropped.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrClosed fails calls made on, or pending at, a closed channel.
	ErrClosed = errors.New("channel closed")
)

// State is the connection state of a channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Ready
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Response is a successful call outcome.
type Response struct {
	Result json.RawMessage
	Data   []byte
}

// Decode unmarshals the structured result into v.
func (r *Response) Decode(v any) error {
	return Unmarshal(r.Result, v)
}

// EventHandler receives the arguments of a worker event.
type EventHandler func(args json.RawMessage)

// Channel is the bridge's view of the worker.
type Channel interface {
	// Call sends method with params and optional binary data and waits for
	// the single outcome. Worker failures are returned as *fserrors.RawError.
	Call(ctx context.Context, method string, params any, data []byte) (*Response, error)
	// Subscribe registers handler for event and returns its removal.
	Subscribe(event string, handler EventHandler) func()
	// OnStateChange registers fn for every state transition and returns
	// its removal.
	OnStateChange(fn func(State)) func()
	State() State
	Close() error
}
