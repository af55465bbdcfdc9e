package bridge

import (
	"context"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

// WatchPath starts watching path and everything below it. Paths matching
// one of the ignored doublestar globs produce no changes.
func (b *Bridge) WatchPath(ctx context.Context, path string, ignored ...string) error {
	_, err := b.call(ctx, types.MethodWatchPath, path, types.WatchRequest{Path: path, Ignored: ignored}, nil)
	return err
}

// UnwatchPath stops watching path. It does not wait for the worker.
func (b *Bridge) UnwatchPath(path string) {
	b.fireAndForget(types.MethodUnwatchPath, path, types.PathRequest{Path: path})
}

// UnwatchAll drops every watch of this connection. It does not wait for the
// worker.
func (b *Bridge) UnwatchAll() {
	b.fireAndForget(types.MethodUnwatchAll, "", struct{}{})
}
