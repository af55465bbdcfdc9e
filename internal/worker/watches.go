package worker

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/infrastructure/logging"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/id"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

// Event kinds pushed to the bridge.
const (
	KindContentChanged = "content-changed"
	KindStructural     = "structural"
)

type watchRoot struct {
	id      id.WatchID
	osPath  string
	isDir   bool
	ignored []string
	dirs    []string
}

// Watches tracks the watch registrations of one bridge connection.
// Directory roots are watched recursively; a file root is watched through
// its parent directory.
type Watches struct {
	fsw     *fsnotify.Watcher
	sandbox paths.Sandbox
	emit    func(types.ChangeEvent)
	logger  *logging.Logger

	mu      sync.Mutex
	roots   map[string]*watchRoot
	dirRefs map[string]int
	closed  bool
	done    chan struct{}
}

// NewWatches starts an fsnotify watcher whose events are reported to emit.
func NewWatches(sandbox paths.Sandbox, emit func(types.ChangeEvent), logger *logging.Logger) (*Watches, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watches{
		fsw:     fsw,
		sandbox: sandbox,
		emit:    emit,
		logger:  logging.OrNop(logger).Named("watches"),
		roots:   make(map[string]*watchRoot),
		dirRefs: make(map[string]int),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Add starts watching the bridge path. Watching a path again replaces its
// ignore patterns.
func (w *Watches) Add(path string, ignored []string) error {
	for _, pattern := range ignored {
		if !doublestar.ValidatePattern(pattern) {
			return errInvalidParams
		}
	}
	osPath, err := w.sandbox.Resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(osPath)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("watches closed")
	}
	if root, ok := w.roots[osPath]; ok {
		root.ignored = ignored
		return nil
	}

	root := &watchRoot{
		id:      id.NewWatchID(),
		osPath:  osPath,
		isDir:   info.IsDir(),
		ignored: ignored,
	}
	if root.isDir {
		root.dirs, err = w.collectDirs(root, osPath)
		if err != nil {
			return err
		}
	} else {
		root.dirs = []string{filepath.Dir(osPath)}
	}

	for i, dir := range root.dirs {
		if err := w.refLocked(dir); err != nil {
			for _, added := range root.dirs[:i] {
				w.unrefLocked(added)
			}
			return err
		}
	}
	w.roots[osPath] = root
	w.logger.Debug("Watch added",
		zap.Stringer("watch", root.id),
		zap.String("path", osPath),
		zap.Int("dirs", len(root.dirs)))
	return nil
}

// Remove stops watching the bridge path. Unknown paths are ignored.
func (w *Watches) Remove(path string) error {
	osPath, err := w.sandbox.Resolve(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(osPath)
	return nil
}

// RemoveAll drops every registration.
func (w *Watches) RemoveAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for osPath := range w.roots {
		w.removeLocked(osPath)
	}
}

// Count returns the number of registered roots.
func (w *Watches) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.roots)
}

// Close stops the fsnotify watcher.
func (w *Watches) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.roots = nil
	w.dirRefs = nil
	close(w.done)
	w.mu.Unlock()
	return w.fsw.Close()
}

func (w *Watches) removeLocked(osPath string) {
	root, ok := w.roots[osPath]
	if !ok {
		return
	}
	delete(w.roots, osPath)
	for _, dir := range root.dirs {
		w.unrefLocked(dir)
	}
	w.logger.Debug("Watch removed", zap.Stringer("watch", root.id), zap.String("path", osPath))
}

func (w *Watches) refLocked(dir string) error {
	if w.dirRefs[dir] == 0 {
		if err := w.fsw.Add(dir); err != nil {
			return err
		}
	}
	w.dirRefs[dir]++
	return nil
}

func (w *Watches) unrefLocked(dir string) {
	n := w.dirRefs[dir]
	if n > 1 {
		w.dirRefs[dir] = n - 1
		return
	}
	delete(w.dirRefs, dir)
	// the directory may already be gone, taking its watch with it
	_ = w.fsw.Remove(dir)
}

// collectDirs walks start and returns every directory below root that is
// not ignored, start included.
func (w *Watches) collectDirs(root *watchRoot, start string) ([]string, error) {
	var (
		mu   sync.Mutex
		dirs []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, start, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == start {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root.osPath && root.ignores(p) {
			return fs.SkipDir
		}
		mu.Lock()
		dirs = append(dirs, p)
		mu.Unlock()
		return nil
	})
	return dirs, err
}

// ignores reports whether an OS path below the root matches an ignore
// pattern, tried against both the root-relative and the absolute path.
func (r *watchRoot) ignores(osPath string) bool {
	if len(r.ignored) == 0 {
		return false
	}
	abs := filepath.ToSlash(osPath)
	rel := abs
	if r.isDir {
		if p, err := filepath.Rel(r.osPath, osPath); err == nil {
			rel = filepath.ToSlash(p)
		}
	}
	for _, pattern := range r.ignored {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, abs); ok {
			return true
		}
	}
	return false
}

func (r *watchRoot) covers(osPath string) bool {
	if !r.isDir {
		return osPath == r.osPath
	}
	rel, err := filepath.Rel(r.osPath, osPath)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watches) run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watch backend error", zap.Error(err))
		case <-w.done:
			return
		}
	}
}

func (w *Watches) handle(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	parent := filepath.Dir(event.Name)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	deliver := false
	for _, root := range w.roots {
		if !root.covers(event.Name) || root.ignores(event.Name) {
			continue
		}
		deliver = true
		if root.isDir && event.Has(fsnotify.Create) {
			w.watchNewDirLocked(root, event.Name)
		}
	}
	w.mu.Unlock()

	if !deliver {
		return
	}
	change := types.ChangeEvent{Path: w.sandbox.Bridge(parent, true)}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		change.Kind = KindStructural
	} else {
		change.Kind = KindContentChanged
		change.Filename = filepath.Base(event.Name)
	}
	w.emit(change)
}

// watchNewDirLocked extends a recursive root over a directory created
// after the root was registered.
func (w *Watches) watchNewDirLocked(root *watchRoot, osPath string) {
	info, err := os.Lstat(osPath)
	if err != nil || !info.IsDir() {
		return
	}
	dirs, err := w.collectDirs(root, osPath)
	if err != nil {
		w.logger.Warn("Failed to watch new directory", zap.String("path", osPath), zap.Error(err))
		return
	}
	for _, dir := range dirs {
		if err := w.refLocked(dir); err != nil {
			w.logger.Warn("Failed to watch new directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		root.dirs = append(root.dirs, dir)
	}
}
