package shader

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of filesystem events most editors emit
// for a single save into one reload.
const reloadDebounce = 100 * time.Millisecond

// ReloadFunc is invoked with the changed shader source path after debounce.
// It runs on the watcher goroutine; implementations hand the work to the
// render thread rather than touching GPU state directly.
type ReloadFunc func(path string)

// watcherImpl is the implementation of the Watcher interface.
type watcherImpl struct {
	mu       sync.Mutex
	fw       *fsnotify.Watcher
	paths    map[string]struct{}
	pending  map[string]*time.Timer
	onReload ReloadFunc
	done     chan struct{}
}

// Watcher observes shader source files on disk and reports edits so shaders
// can be recompiled without restarting. A reload that fails to compile keeps
// the previous module; the owning pass is disabled only when the shader is
// missing at load time.
type Watcher interface {
	// Watch registers a shader source path for change notifications. The
	// containing directory is watched so editors that replace the file
	// (rename-over-save) are still detected.
	//
	// Parameters:
	//   - path: the shader source file path
	//
	// Returns:
	//   - error: an error if the directory cannot be watched
	Watch(path string) error

	// Close stops the watcher goroutine and releases the filesystem watches.
	//
	// Returns:
	//   - error: an error if the underlying watcher fails to close
	Close() error
}

var _ Watcher = &watcherImpl{}

// NewWatcher creates a Watcher that invokes onReload for each changed
// watched path.
//
// Parameters:
//   - onReload: the callback invoked after a watched shader changes
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if the filesystem watcher cannot be created
func NewWatcher(onReload ReloadFunc) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcherImpl{
		fw:       fw,
		paths:    make(map[string]struct{}),
		pending:  make(map[string]*time.Timer),
		onReload: onReload,
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *watcherImpl) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.paths[abs] = struct{}{}
	w.mu.Unlock()

	// Watching the directory instead of the file survives rename-over-save.
	return w.fw.Add(filepath.Dir(abs))
}

func (w *watcherImpl) Close() error {
	close(w.done)
	return w.fw.Close()
}

func (w *watcherImpl) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("[ShaderWatcher] watch error: %v", err)
		}
	}
}

// schedule debounces a change notification for one path.
func (w *watcherImpl) schedule(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, watched := w.paths[abs]; !watched {
		return
	}
	if timer, exists := w.pending[abs]; exists {
		timer.Stop()
	}
	w.pending[abs] = time.AfterFunc(reloadDebounce, func() {
		w.mu.Lock()
		delete(w.pending, abs)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}
		log.Printf("[ShaderWatcher] reloading %s", abs)
		w.onReload(abs)
	})
}
