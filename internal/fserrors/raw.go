package fserrors

import "fmt"

// Vocabulary A: native dialog/platform codes.
const (
	NativeInvalidParams       = "invalid-params"
	NativeNotFound            = "not-found"
	NativeCantRead            = "cant-read"
	NativeCantWrite           = "cant-write"
	NativeUnsupportedEncoding = "unsupported-encoding"
	NativeOutOfSpace          = "out-of-space"
	NativeFileExists          = "file-exists"
)

// Vocabulary B: OS cause codes reported by the worker.
const (
	CauseNotExist   = "ENOENT"
	CauseExist      = "EEXIST"
	CausePermission = "EPERM"
)

// BinaryContentName marks a text read refused by the worker because the
// content looked binary.
const BinaryContentName = "BinaryContentError"

// RawError is an error as it travels over the channel, before translation.
type RawError struct {
	Name    string    `json:"name,omitempty"`
	Message string    `json:"message,omitempty"`
	Code    string    `json:"code,omitempty"`
	Cause   *RawCause `json:"cause,omitempty"`
}

// RawCause is the nested OS cause of a worker error.
type RawCause struct {
	Code string `json:"code"`
}

// Error implements the error interface.
func (e *RawError) Error() string {
	code := e.Code
	if code == "" && e.Cause != nil {
		code = e.Cause.Code
	}
	switch {
	case code != "" && e.Message != "":
		return fmt.Sprintf("%s (%s)", e.Message, code)
	case e.Message != "":
		return e.Message
	case code != "":
		return code
	case e.Name != "":
		return e.Name
	default:
		return "worker error"
	}
}

// CauseCode returns the nested cause code, or "" when absent.
func (e *RawError) CauseCode() string {
	if e == nil || e.Cause == nil {
		return ""
	}
	return e.Cause.Code
}

// NewNativeError builds a raw error carrying a vocabulary-A code.
func NewNativeError(code, message string) *RawError {
	return &RawError{Code: code, Message: message}
}

// NewCauseError builds a raw error carrying a vocabulary-B cause code.
func NewCauseError(cause, message string) *RawError {
	return &RawError{Message: message, Cause: &RawCause{Code: cause}}
}
