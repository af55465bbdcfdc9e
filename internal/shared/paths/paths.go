package paths

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is returned for paths that escape the sandbox root.
var ErrOutsideRoot = errors.New("path escapes the worker root")

// Sandbox confines worker paths to a root directory. The zero value has no
// root and accepts any absolute path.
type Sandbox struct {
	Root string
}

// NewSandbox cleans root. An empty root disables confinement.
func NewSandbox(root string) (Sandbox, error) {
	if root == "" {
		return Sandbox{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Sandbox{}, err
	}
	return Sandbox{Root: abs}, nil
}

// Resolve maps a bridge path to an OS path. Bridge paths are absolute and
// slash-separated; with a root they are interpreted relative to it.
func (s Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	clean := filepath.Clean(filepath.FromSlash(path))
	if s.Root == "" {
		if !filepath.IsAbs(clean) {
			return "", errors.New("path must be absolute")
		}
		return clean, nil
	}

	if filepath.IsAbs(clean) && s.Contains(clean) {
		return clean, nil
	}
	joined := filepath.Join(s.Root, clean)
	if !s.Contains(joined) {
		return "", ErrOutsideRoot
	}
	return joined, nil
}

// Contains reports whether path lies at or below the root.
func (s Sandbox) Contains(path string) bool {
	if s.Root == "" {
		return true
	}
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Bridge maps an OS path back to the slash-separated form the bridge uses,
// relative to the root when there is one. Directories get a trailing slash
// so the bridge can append entry names.
func (s Sandbox) Bridge(osPath string, dir bool) string {
	out := filepath.ToSlash(osPath)
	if s.Root != "" {
		if rel, err := filepath.Rel(s.Root, osPath); err == nil && s.Contains(osPath) {
			out = "/" + filepath.ToSlash(rel)
			if rel == "." {
				out = "/"
			}
		}
	}
	if dir && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	return out
}
