package fserrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
)

func TestFromNative(t *testing.T) {
	tests := []struct {
		code string
		want Kind
	}{
		{NativeInvalidParams, KindInvalidParams},
		{NativeNotFound, KindNotFound},
		{NativeCantRead, KindNotReadable},
		{NativeCantWrite, KindNotWritable},
		{NativeUnsupportedEncoding, KindNotReadable},
		{NativeOutOfSpace, KindOutOfSpace},
		{NativeFileExists, KindAlreadyExists},
		{"device-on-fire", KindUnknown},
		{"", KindNone},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("code=%q", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, FromNative(tt.code))
		})
	}
}

func newObservedTranslator() (*Translator, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewTranslator(logging.Wrap(zap.New(core))), logs
}

func TestFromWorker(t *testing.T) {
	tests := []struct {
		name    string
		raw     *RawError
		want    Kind
		logged  bool
		logCode string
	}{
		{"nil is no error", nil, KindNone, false, ""},
		{"ENOENT", NewCauseError(CauseNotExist, "no such file"), KindNotFound, false, ""},
		{"EEXIST", NewCauseError(CauseExist, "exists"), KindAlreadyExists, false, ""},
		{"EPERM", NewCauseError(CausePermission, "denied"), KindNotReadable, false, ""},
		{"EISDIR", NewCauseError("EISDIR", "is a directory"), KindUnknown, true, "EISDIR"},
		{"missing cause", &RawError{Message: "boom"}, KindUnknown, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, logs := newObservedTranslator()

			assert.Equal(t, tt.want, tr.FromWorker(tt.raw))

			if !tt.logged {
				assert.Zero(t, logs.Len())
				return
			}
			entries := logs.FilterMessage("Unrecognized worker error code").All()
			require.Len(t, entries, 1)
			assert.Equal(t, zap.WarnLevel, entries[0].Level)
			assert.Equal(t, tt.logCode, entries[0].ContextMap()["code"])
		})
	}
}

func TestKindPrecedence(t *testing.T) {
	tr, _ := newObservedTranslator()

	assert.Equal(t, KindBinaryContent, tr.Kind(&RawError{Name: BinaryContentName, Code: NativeCantRead}))
	assert.Equal(t, KindOutOfSpace, tr.Kind(&RawError{Code: NativeOutOfSpace, Cause: &RawCause{Code: CauseNotExist}}))
	assert.Equal(t, KindNotFound, tr.Kind(&RawError{Code: "weird", Cause: &RawCause{Code: CauseNotExist}}))
	assert.Equal(t, KindUnknown, tr.Kind(&RawError{Code: "weird"}))
}

func TestTranslate(t *testing.T) {
	tr, _ := newObservedTranslator()

	assert.NoError(t, tr.Translate("stat", "/a", nil))

	err := tr.Translate("stat", "/a", fmt.Errorf("call: %w", NewCauseError(CauseNotExist, "missing")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "stat /a")

	var raw *RawError
	assert.True(t, errors.As(err, &raw))

	existing := New(KindContentsModified, "writeFile", "/b", nil)
	assert.Same(t, existing, tr.Translate("other", "/c", existing))

	ctxErr := tr.Translate("readFile", "/d", context.Canceled)
	assert.Equal(t, KindUnknown, KindOf(ctxErr))
	assert.True(t, IsContextError(ctxErr))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.True(t, Is(ContentsModified("/f", "1", "2"), KindContentsModified))
	assert.True(t, errors.Is(ContentsModified("/f", "1", "2"), ErrContentsModified))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "BinaryContentError", KindBinaryContent.String())
	assert.Equal(t, "None", KindNone.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}

func TestRawErrorMessage(t *testing.T) {
	assert.Equal(t, "missing (ENOENT)", NewCauseError(CauseNotExist, "missing").Error())
	assert.Equal(t, "bad (invalid-params)", NewNativeError(NativeInvalidParams, "bad").Error())
	assert.Equal(t, "worker error", (&RawError{}).Error())
}
