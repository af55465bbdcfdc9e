package worker

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

func callFrame(t *testing.T, method string, params any) *channel.Frame {
	t.Helper()
	f := &channel.Frame{Kind: channel.KindCall, ID: "c1", Method: method}
	if params != nil {
		raw, err := channel.Marshal(params)
		require.NoError(t, err)
		f.Params = raw
	}
	return f
}

func TestDispatch(t *testing.T) {
	s, root := newService(t)
	writeFile(t, root, "a.txt", "x")
	watches, err := NewWatches(s.Sandbox(), func(types.ChangeEvent) {}, nil)
	require.NoError(t, err)
	defer watches.Close()
	ctx := context.Background()

	tests := []struct {
		name   string
		frame  *channel.Frame
		// result is empty for commands that return nothing
		result string
		code   string
		cause  string
	}{
		{name: "exists", frame: callFrame(t, types.MethodExists, types.PathRequest{Path: "/a.txt"}), result: "true"},
		{name: "rename missing", frame: callFrame(t, types.MethodRename, types.RenameRequest{OldPath: "/zz", NewPath: "/yy"}), cause: fserrors.CauseNotExist},
		{name: "watch", frame: callFrame(t, types.MethodWatchPath, types.WatchRequest{Path: "/"})},
		{name: "bad glob", frame: callFrame(t, types.MethodWatchPath, types.WatchRequest{Path: "/", Ignored: []string{"[a"}}), code: fserrors.NativeInvalidParams},
		{name: "unwatch all", frame: callFrame(t, types.MethodUnwatchAll, nil)},
		{name: "missing params", frame: callFrame(t, types.MethodStat, nil), code: fserrors.NativeInvalidParams},
		{name: "malformed params", frame: &channel.Frame{Kind: channel.KindCall, ID: "c1", Method: types.MethodStat, Params: json.RawMessage(`[1]`)}, code: fserrors.NativeInvalidParams},
		{name: "unknown method", frame: callFrame(t, "chmod", types.PathRequest{Path: "/a.txt"}), code: fserrors.NativeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := s.Dispatch(ctx, watches, tt.frame)
			assert.Equal(t, channel.KindResult, reply.Kind)
			assert.Equal(t, "c1", reply.ID)

			if tt.code == "" && tt.cause == "" {
				require.Nil(t, reply.Error)
				if tt.result == "" {
					// commands without a result leave the field out
					assert.Empty(t, reply.Result)
					return
				}
				assert.JSONEq(t, tt.result, string(reply.Result))
				return
			}
			require.NotNil(t, reply.Error)
			assert.Equal(t, tt.code, reply.Error.Code)
			assert.Equal(t, tt.cause, reply.Error.CauseCode())
		})
	}
}
