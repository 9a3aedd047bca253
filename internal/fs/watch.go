package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codefionn/evalkit/internal/logger"
)

// ChangeEvent reports that a watched file was written.
type ChangeEvent struct {
	Path string
	Time time.Time
}

// Watcher watches a directory tree (up to maxDepth levels below root) and
// reports writes to files with a given base name. New directories are picked
// up as they are created.
type Watcher struct {
	root     string
	name     string
	maxDepth int
	debounce time.Duration

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher for files called name below root.
func NewWatcher(root, name string, maxDepth int, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw := &Watcher{
		root:     filepath.Clean(root),
		name:     name,
		maxDepth: maxDepth,
		debounce: debounce,
		watcher:  w,
		pending:  make(map[string]*time.Timer),
	}

	if err := fw.addTree(fw.root); err != nil {
		_ = w.Close()
		return nil, err
	}
	return fw, nil
}

// Run delivers change events to fn until ctx is cancelled. fn is called from
// timer goroutines and must be safe for concurrent use.
func (w *Watcher) Run(ctx context.Context, fn func(ChangeEvent)) error {
	defer w.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event, fn)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("result watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, fn func(ChangeEvent)) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				logger.Warn("result watcher: %v", err)
			}
			return
		}
	}

	if filepath.Base(event.Name) != w.name {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[event.Name]; ok {
		timer.Stop()
	}
	path := event.Name
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		fn(ChangeEvent{Path: path, Time: time.Now()})
	})
}

func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	depth := 1
	for dir := filepath.Dir(rel); dir != "."; dir = filepath.Dir(dir) {
		depth++
	}
	return depth
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.depth(path) > w.maxDepth {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) close() {
	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
