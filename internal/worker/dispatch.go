package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/channel"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

// Dispatch executes one call frame and returns its result frame. watches
// holds the registrations of the connection the call arrived on. Commands
// without a result, and binary-mode results carried only in Data, leave
// Result empty.
func (s *Service) Dispatch(ctx context.Context, watches *Watches, call *channel.Frame) *channel.Frame {
	reply := &channel.Frame{Kind: channel.KindResult, ID: call.ID}

	result, data, err := s.execute(ctx, watches, call)
	if err != nil {
		reply.Error = toRaw(err)
		s.logger.Debug("Command failed",
			zap.String("method", call.Method),
			zap.String("code", reply.Error.Code),
			zap.String("cause", reply.Error.CauseCode()),
			zap.Error(err))
		return reply
	}

	raw, err := channel.Marshal(result)
	if err != nil {
		reply.Error = toRaw(fmt.Errorf("encode %s result: %w", call.Method, err))
		return reply
	}
	reply.Result = raw
	reply.Data = data
	s.logger.Debug("Command done", zap.String("method", call.Method), zap.Int("data", len(data)))
	return reply
}

func decode[T any](call *channel.Frame) (T, error) {
	var req T
	if len(call.Params) == 0 {
		return req, fmt.Errorf("%w: %s needs params", errInvalidParams, call.Method)
	}
	if err := channel.Unmarshal(call.Params, &req); err != nil {
		return req, fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return req, nil
}

func (s *Service) execute(ctx context.Context, watches *Watches, call *channel.Frame) (any, []byte, error) {
	switch call.Method {
	case types.MethodStat:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return s.Stat(ctx, req)

	case types.MethodExists:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		ok, err := s.Exists(ctx, req)
		return ok, nil, err

	case types.MethodReaddir:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		entries, data, err := s.Readdir(ctx, req)
		return entries, data, err

	case types.MethodReadFile:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return s.ReadFile(ctx, req)

	case types.MethodReadAllFiles:
		req, err := decode[types.ReadAllRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return s.ReadAllFiles(ctx, req)

	case types.MethodWriteFile:
		req, err := decode[types.WriteRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return s.WriteFile(ctx, req, call.Data)

	case types.MethodMkdir:
		req, err := decode[types.MkdirRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return s.Mkdir(ctx, req)

	case types.MethodRename:
		req, err := decode[types.RenameRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, s.Rename(ctx, req)

	case types.MethodUnlink:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, s.Unlink(ctx, req)

	case types.MethodWatchPath:
		req, err := decode[types.WatchRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, watches.Add(req.Path, req.Ignored)

	case types.MethodUnwatchPath:
		req, err := decode[types.PathRequest](call)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, watches.Remove(req.Path)

	case types.MethodUnwatchAll:
		watches.RemoveAll()
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown method %q", errInvalidParams, call.Method)
	}
}
