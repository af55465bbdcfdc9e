package fserrors

import "errors"

// Kind is the normalized error vocabulary exposed to bridge callers.
type Kind int

const (
	// KindNone is the "no error" sentinel. It is distinct from KindUnknown.
	KindNone Kind = iota
	KindInvalidParams
	KindNotFound
	KindNotReadable
	KindNotWritable
	KindOutOfSpace
	KindAlreadyExists
	KindContentsModified
	KindBinaryContent
	KindUnknown
)

var kindNames = map[Kind]string{
	KindNone:             "None",
	KindInvalidParams:    "InvalidParams",
	KindNotFound:         "NotFound",
	KindNotReadable:      "NotReadable",
	KindNotWritable:      "NotWritable",
	KindOutOfSpace:       "OutOfSpace",
	KindAlreadyExists:    "AlreadyExists",
	KindContentsModified: "ContentsModified",
	KindBinaryContent:    "BinaryContentError",
	KindUnknown:          "Unknown",
}

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Sentinels usable with errors.Is against any *Error.
var (
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrNotFound         = errors.New("not found")
	ErrNotReadable      = errors.New("not readable")
	ErrNotWritable      = errors.New("not writable")
	ErrOutOfSpace       = errors.New("out of space")
	ErrAlreadyExists    = errors.New("already exists")
	ErrContentsModified = errors.New("contents modified")
	ErrBinaryContent    = errors.New("binary content")
	ErrUnknown          = errors.New("unknown error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidParams:
		return ErrInvalidParams
	case KindNotFound:
		return ErrNotFound
	case KindNotReadable:
		return ErrNotReadable
	case KindNotWritable:
		return ErrNotWritable
	case KindOutOfSpace:
		return ErrOutOfSpace
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindContentsModified:
		return ErrContentsModified
	case KindBinaryContent:
		return ErrBinaryContent
	case KindNone:
		return nil
	default:
		return ErrUnknown
	}
}
