package codec

import (
	"math"

	"github.com/bytedance/sonic"
)

// StatJSON is the structured representation of a StatRecord.
type StatJSON struct {
	IsFile       bool    `json:"isFile"`
	Mtime        float64 `json:"mtime"`
	Size         uint64  `json:"size"`
	ResolvedPath string  `json:"resolvedPath,omitempty"`
}

// FileJSON is a structured single-file read or write result.
type FileJSON struct {
	Stat    StatJSON `json:"stat"`
	Content string   `json:"content,omitempty"`
	Created bool     `json:"created,omitempty"`
}

// ToStructured converts r to its structured form.
func ToStructured(r StatRecord) StatJSON {
	return StatJSON{
		IsFile:       r.IsFile,
		Mtime:        float64(r.ModTime.UnixMilli()),
		Size:         r.Size,
		ResolvedPath: r.ResolvedPath,
	}
}

// FromStructured converts a structured stat back into a record.
func FromStructured(s StatJSON) StatRecord {
	return StatRecord{
		IsFile:       s.IsFile,
		ModTime:      fromMillis(int64(math.Round(s.Mtime))),
		Size:         s.Size,
		ResolvedPath: s.ResolvedPath,
	}
}

// MarshalStat encodes r as structured JSON.
func MarshalStat(r StatRecord) ([]byte, error) {
	return sonic.Marshal(ToStructured(r))
}

// UnmarshalStat decodes structured JSON into a record.
func UnmarshalStat(data []byte) (StatRecord, error) {
	var s StatJSON
	if err := sonic.Unmarshal(data, &s); err != nil {
		return StatRecord{}, err
	}
	return FromStructured(s), nil
}
