package types

import "github.com/GriffinCanCode/AgentOS/fsbridge/internal/codec"

// Worker commands.
const (
	MethodStat         = "stat"
	MethodExists       = "exists"
	MethodReaddir      = "readdir"
	MethodReadFile     = "readFile"
	MethodReadAllFiles = "readAllFiles"
	MethodWriteFile    = "writeFile"
	MethodMkdir        = "mkdir"
	MethodRename       = "rename"
	MethodUnlink       = "unlink"
	MethodWatchPath    = "watchPath"
	MethodUnwatchPath  = "unwatchPath"
	MethodUnwatchAll   = "unwatchAll"
)

// EventFileChanged carries a ChangeEvent.
const EventFileChanged = "fileChanged"

// PathRequest addresses one path. Encoding selects how stat records and
// content come back; the empty encoding selects binary mode.
type PathRequest struct {
	Path     string         `json:"path"`
	Encoding codec.Encoding `json:"encoding"`
}

// ReadAllRequest reads several files in one call.
type ReadAllRequest struct {
	Paths    []string       `json:"paths"`
	Encoding codec.Encoding `json:"encoding"`
}

// WriteRequest writes a whole file. Text content travels in Content; in
// binary mode the bytes travel in the frame's data.
type WriteRequest struct {
	Path     string         `json:"path"`
	Encoding codec.Encoding `json:"encoding"`
	Content  string         `json:"content,omitempty"`
}

type MkdirRequest struct {
	Path     string         `json:"path"`
	Mode     uint32         `json:"mode"`
	Encoding codec.Encoding `json:"encoding"`
}

type RenameRequest struct {
	OldPath string `json:"oldPath"`
	NewPath string `json:"newPath"`
}

// WatchRequest starts watching Path. Events for paths matching any Ignored
// glob are dropped by the worker.
type WatchRequest struct {
	Path    string   `json:"path"`
	Ignored []string `json:"ignored,omitempty"`
}
