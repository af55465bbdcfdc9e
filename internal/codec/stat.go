package codec

import (
	"strconv"
	"strings"
	"time"
)

// StatRecord is the metadata snapshot of one filesystem entry.
type StatRecord struct {
	IsFile  bool
	ModTime time.Time
	Size    uint64
	// ResolvedPath is set only when the looked-up entry was a symbolic link.
	ResolvedPath string
}

// NewStatRecord builds a record with millisecond modification time. A
// directory's resolved path is normalized to end with a separator.
func NewStatRecord(isFile bool, modTime time.Time, size uint64, resolvedPath string) StatRecord {
	return StatRecord{
		IsFile:       isFile,
		ModTime:      fromMillis(modTime.UnixMilli()),
		Size:         size,
		ResolvedPath: NormalizeResolvedPath(isFile, resolvedPath),
	}
}

// NormalizeResolvedPath appends "/" to a directory's resolved path.
func NormalizeResolvedPath(isFile bool, resolvedPath string) string {
	if resolvedPath == "" || isFile || strings.HasSuffix(resolvedPath, "/") {
		return resolvedPath
	}
	return resolvedPath + "/"
}

// IsDirectory is the inverse of IsFile.
func (r StatRecord) IsDirectory() bool {
	return !r.IsFile
}

// IsSymlink reports whether the record was produced for a symbolic link.
func (r StatRecord) IsSymlink() bool {
	return r.ResolvedPath != ""
}

// Hash returns the optimistic-concurrency token of the record: its
// modification time in epoch milliseconds. Two writes inside the same
// millisecond share a token.
func (r StatRecord) Hash() string {
	return strconv.FormatInt(r.ModTime.UnixMilli(), 10)
}

// Equal compares records by value.
func (r StatRecord) Equal(other StatRecord) bool {
	return r.IsFile == other.IsFile &&
		r.ModTime.UnixMilli() == other.ModTime.UnixMilli() &&
		r.Size == other.Size &&
		r.ResolvedPath == other.ResolvedPath
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
