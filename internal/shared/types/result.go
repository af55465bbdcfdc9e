package types

import (
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/fserrors"
)

// DirEntry is one readdir entry. In binary mode Stat is omitted and the
// stats travel in the frame's data as a stat list.
type DirEntry struct {
	Name  string             `json:"name"`
	Stat  *codec.StatJSON    `json:"stat,omitempty"`
	Error *fserrors.RawError `json:"error,omitempty"`
}

// BatchFile is one readAllFiles entry in text mode.
type BatchFile struct {
	Stat    *codec.StatJSON    `json:"stat,omitempty"`
	Content string             `json:"content,omitempty"`
	Error   *fserrors.RawError `json:"error,omitempty"`
}

// WriteResult reports a write. In binary mode Stat is omitted and the stat
// travels in the frame's data.
type WriteResult struct {
	Created bool            `json:"created"`
	Stat    *codec.StatJSON `json:"stat,omitempty"`
}

// ChangeEvent is a raw change notification pushed by the worker. Kind is
// "content-changed" or "structural".
type ChangeEvent struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Filename string `json:"filename,omitempty"`
}
