// Package testutil provides testing utilities and helpers for bridge tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
)

// MockChannel is a mock implementation of channel.Channel. Calls go through
// testify; events and state changes are driven by the test with Emit and
// SetState.
type MockChannel struct {
	mock.Mock

	mu        sync.Mutex
	state     channel.State
	nextID    int
	handlers  map[string]map[int]channel.EventHandler
	listeners map[int]func(channel.State)
}

// NewMockChannel creates a mock channel in the Ready state.
func NewMockChannel(t *testing.T) *MockChannel {
	t.Helper()
	return &MockChannel{
		state:     channel.Ready,
		handlers:  make(map[string]map[int]channel.EventHandler),
		listeners: make(map[int]func(channel.State)),
	}
}

// Call mocks the Call method.
func (m *MockChannel) Call(ctx context.Context, method string, params any, data []byte) (*channel.Response, error) {
	args := m.Called(ctx, method, params, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*channel.Response), args.Error(1)
}

// Subscribe registers handler for Emit.
func (m *MockChannel) Subscribe(event string, handler channel.EventHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]channel.EventHandler)
	}
	m.handlers[event][id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers[event], id)
	}
}

// OnStateChange registers fn for SetState.
func (m *MockChannel) OnStateChange(fn func(channel.State)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// State returns the state last set.
func (m *MockChannel) State() channel.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close is a no-op.
func (m *MockChannel) Close() error { return nil }

// SetState changes the state and notifies listeners synchronously.
func (m *MockChannel) SetState(state channel.State) {
	m.mu.Lock()
	m.state = state
	listeners := make([]func(channel.State), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state)
	}
}

// Emit delivers event with args to every subscribed handler.
func (m *MockChannel) Emit(t *testing.T, event string, args any) {
	t.Helper()
	raw, err := channel.Marshal(args)
	require.NoError(t, err)

	m.mu.Lock()
	handlers := make([]channel.EventHandler, 0, len(m.handlers[event]))
	for _, h := range m.handlers[event] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(raw)
	}
}

// Subscribers returns the number of handlers registered for event.
func (m *MockChannel) Subscribers(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers[event])
}

// Response builds a successful call outcome carrying result and data.
func Response(t *testing.T, result any, data []byte) *channel.Response {
	t.Helper()
	raw, err := channel.Marshal(result)
	require.NoError(t, err)
	return &channel.Response{Result: raw, Data: data}
}
