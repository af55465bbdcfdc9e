package fserrors

import (
	"errors"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
)

var nativeKinds = map[string]Kind{
	NativeInvalidParams:       KindInvalidParams,
	NativeNotFound:            KindNotFound,
	NativeCantRead:            KindNotReadable,
	NativeCantWrite:           KindNotWritable,
	NativeUnsupportedEncoding: KindNotReadable,
	NativeOutOfSpace:          KindOutOfSpace,
	NativeFileExists:          KindAlreadyExists,
}

// EPERM maps to NotReadable. It is an approximation: a permission failure
// on write surfaces as NotReadable too.
var causeKinds = map[string]Kind{
	CauseNotExist:   KindNotFound,
	CauseExist:      KindAlreadyExists,
	CausePermission: KindNotReadable,
}

// FromNative maps a vocabulary-A code. The empty code means "no error".
func FromNative(code string) Kind {
	if code == "" {
		return KindNone
	}
	if kind, ok := nativeKinds[code]; ok {
		return kind
	}
	return KindUnknown
}

// Translator normalizes raw channel errors into *Error values.
type Translator struct {
	logger *logging.Logger
}

// NewTranslator creates a translator that reports unrecognized worker codes
// on logger.
func NewTranslator(logger *logging.Logger) *Translator {
	return &Translator{logger: logging.OrNop(logger).Named("fserrors")}
}

// FromWorker maps a vocabulary-B error through its nested cause code. A nil
// error means "no error"; anything unrecognized is Unknown and logged.
func (t *Translator) FromWorker(raw *RawError) Kind {
	if raw == nil {
		return KindNone
	}
	code := raw.CauseCode()
	if kind, ok := causeKinds[code]; ok {
		return kind
	}
	t.logger.Warn("Unrecognized worker error code",
		zap.String("code", code),
		zap.String("message", raw.Message),
	)
	return KindUnknown
}

// Kind classifies a raw error: the binary-content marker first, then a
// vocabulary-A code if present, then the vocabulary-B cause.
func (t *Translator) Kind(raw *RawError) Kind {
	if raw == nil {
		return KindNone
	}
	if raw.Name == BinaryContentName {
		return KindBinaryContent
	}
	if raw.Code != "" {
		if kind := FromNative(raw.Code); kind != KindUnknown {
			return kind
		}
		if raw.Cause == nil {
			return KindUnknown
		}
	}
	return t.FromWorker(raw)
}

// Translate converts any error produced below the facade into an *Error
// for op on path. nil stays nil and existing *Error values pass through.
func (t *Translator) Translate(op, path string, err error) error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	var raw *RawError
	if errors.As(err, &raw) {
		return &Error{Kind: t.Kind(raw), Op: op, Path: path, Err: raw}
	}

	return &Error{Kind: KindUnknown, Op: op, Path: path, Err: err}
}
