package worker

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/paths"
	"github.com/GriffinCanCode/AgentOS/fsbridge/internal/shared/types"
)

type eventLog struct {
	mu     sync.Mutex
	events []types.ChangeEvent
}

func (l *eventLog) emit(ev types.ChangeEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) has(match func(types.ChangeEvent) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ev := range l.events {
		if match(ev) {
			return true
		}
	}
	return false
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func newWatches(t *testing.T) (*Watches, *eventLog, string) {
	t.Helper()
	root := t.TempDir()
	sandbox, err := paths.NewSandbox(root)
	require.NoError(t, err)
	log := &eventLog{}
	w, err := NewWatches(sandbox, log.emit, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w, log, root
}

func TestWatchReportsContentAndStructuralChanges(t *testing.T) {
	w, log, root := newWatches(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("a"), 0o644))
	require.NoError(t, w.Add("/", nil))
	assert.Equal(t, 1, w.Count())

	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("b"), 0o644))
	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool {
			return ev.Kind == KindContentChanged && ev.Path == "/" && ev.Filename == "f.txt"
		})
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(root, "f.txt")))
	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool {
			return ev.Kind == KindStructural && ev.Path == "/" && ev.Filename == ""
		})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchIsRecursive(t *testing.T) {
	w, log, root := newWatches(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, w.Add("/", nil))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "deep.txt"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool { return ev.Path == "/a/b/" })
	}, 2*time.Second, 10*time.Millisecond)

	// directories created after the watch started are picked up too
	require.NoError(t, os.Mkdir(filepath.Join(root, "late"), 0o755))
	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool { return ev.Path == "/" && ev.Kind == KindStructural })
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.dirRefs[filepath.Join(root, "late")] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "late", "f.txt"), []byte("x"), 0o644))
	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool { return ev.Path == "/late/" })
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchIgnoredPatterns(t *testing.T) {
	w, log, root := newWatches(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0o755))
	require.NoError(t, w.Add("/", []string{"**/*.log", "node_modules/**", "node_modules"}))

	w.mu.Lock()
	_, watched := w.dirRefs[filepath.Join(root, "node_modules")]
	w.mu.Unlock()
	assert.False(t, watched)

	require.NoError(t, os.WriteFile(filepath.Join(root, "debug.log"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool { return ev.Filename == "keep.txt" })
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, log.has(func(ev types.ChangeEvent) bool { return ev.Filename == "debug.log" }))
}

func TestWatchFileRoot(t *testing.T) {
	w, log, root := newWatches(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "two.txt"), []byte("2"), 0o644))
	require.NoError(t, w.Add("/one.txt", nil))

	require.NoError(t, os.WriteFile(filepath.Join(root, "two.txt"), []byte("22"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "one.txt"), []byte("11"), 0o644))

	assert.Eventually(t, func() bool {
		return log.has(func(ev types.ChangeEvent) bool { return ev.Filename == "one.txt" })
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, log.has(func(ev types.ChangeEvent) bool { return ev.Filename == "two.txt" }))
}

func TestUnwatch(t *testing.T) {
	w, log, root := newWatches(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "d"), 0o755))
	require.NoError(t, w.Add("/", nil))
	require.NoError(t, w.Add("/d", nil))
	assert.Equal(t, 2, w.Count())

	require.NoError(t, w.Remove("/"))
	assert.Equal(t, 1, w.Count())
	// /d is still referenced by its own watch
	w.mu.Lock()
	assert.Equal(t, 1, w.dirRefs[filepath.Join(root, "d")])
	_, rootWatched := w.dirRefs[root]
	w.mu.Unlock()
	assert.False(t, rootWatched)

	w.RemoveAll()
	assert.Equal(t, 0, w.Count())

	log.reset()
	require.NoError(t, os.WriteFile(filepath.Join(root, "d", "f.txt"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.False(t, log.has(func(types.ChangeEvent) bool { return true }))

	assert.NoError(t, w.Remove("/never-watched"))
}

func TestWatchMissingPath(t *testing.T) {
	w, _, _ := newWatches(t)
	err := w.Add("/missing", nil)
	require.Error(t, err)
	assert.Equal(t, "ENOENT", toRaw(err).CauseCode())
}
