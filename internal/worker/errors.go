package worker

import (
	"errors"
	"io/fs"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
)

// errBinaryContent refuses a text read of content that looks binary.
var errBinaryContent = errors.New("content is binary")

// toRaw converts an OS or local failure into the raw error that travels
// back to the bridge. Parameter problems and write-side failures use
// native codes; everything the OS reports otherwise travels as a cause code.
func toRaw(err error) *fserrors.RawError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var we writeError
	writing := errors.As(err, &we)

	switch {
	case errors.Is(err, errBinaryContent):
		return &fserrors.RawError{Name: fserrors.BinaryContentName, Message: msg}
	case errors.Is(err, errInvalidParams), errors.Is(err, paths.ErrOutsideRoot):
		return fserrors.NewNativeError(fserrors.NativeInvalidParams, msg)
	case errors.Is(err, errUnreadable):
		return fserrors.NewNativeError(fserrors.NativeCantRead, msg)
	case errors.Is(err, codec.ErrUnsupportedEncoding):
		return fserrors.NewNativeError(fserrors.NativeUnsupportedEncoding, msg)
	case errors.Is(err, syscall.ENOSPC):
		return fserrors.NewNativeError(fserrors.NativeOutOfSpace, msg)
	case errors.Is(err, fs.ErrNotExist):
		return fserrors.NewCauseError(fserrors.CauseNotExist, msg)
	case errors.Is(err, fs.ErrExist):
		return fserrors.NewCauseError(fserrors.CauseExist, msg)
	case errors.Is(err, fs.ErrPermission):
		if writing {
			return fserrors.NewNativeError(fserrors.NativeCantWrite, msg)
		}
		return fserrors.NewCauseError(fserrors.CausePermission, msg)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fserrors.NewCauseError(errnoName(errno), msg)
	}
	return &fserrors.RawError{Message: msg}
}
