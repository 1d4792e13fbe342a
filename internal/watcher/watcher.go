// Package watcher reloads dataset files when they change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is the quiet period after the last write before a reload fires.
const DefaultDebounce = 400 * time.Millisecond

// Watcher follows a set of dataset files. The parent directory of every file is watched
// so that editors saving through a temp file and rename are still seen.
type Watcher struct {
	onChange func(path string)
	onRemove func(path string)
	quiet    time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	files   map[string]struct{}
	refs    map[string]int // watched files per directory
	pending map[string]*time.Timer
	fs      *fsnotify.Watcher
	cancel  context.CancelFunc
	loop    sync.WaitGroup
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger for file events and reloads.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithDebounce overrides DefaultDebounce. Non-positive values are ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.quiet = d
		}
	}
}

// NewWatcher creates a watcher over files. onChange runs once per burst of writes to a file;
// onRemove runs when a file is removed or renamed away. Either callback may be nil.
func NewWatcher(files []string, onChange, onRemove func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		onChange: onChange,
		onRemove: onRemove,
		quiet:    DefaultDebounce,
		logger:   zap.NewNop(),
		files:    make(map[string]struct{}, len(files)),
		refs:     make(map[string]int),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			w.files[abs] = struct{}{}
		}
	}
	return w
}

// Start begins delivering events until ctx is done or Stop is called. Calling Start on a
// running watcher does nothing.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs != nil {
		return nil
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fs = fs
	for path := range w.files {
		if err := w.refDirLocked(filepath.Dir(path)); err != nil {
			_ = fs.Close()
			w.fs = nil
			w.refs = make(map[string]int)
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.loop.Add(1)
	go w.run(ctx, fs)
	w.logger.Debug("Watching dataset files", zap.Strings("files", w.sortedFilesLocked()))
	return nil
}

// Stop ends event delivery, drops pending reloads and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.loop.Wait()
}

func (w *Watcher) run(ctx context.Context, fs *fsnotify.Watcher) {
	defer w.loop.Done()
	defer w.shutdown(fs)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fs.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-fs.Errors:
			if !ok {
				return
			}
			w.logger.Debug("fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) shutdown(fs *fsnotify.Watcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = fs.Close()
	if w.fs == fs {
		w.fs = nil
		w.cancel = nil
		w.refs = make(map[string]int)
	}
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	path := filepath.Clean(ev.Name)
	if !w.Watching(path) {
		return
	}
	w.logger.Debug("Dataset file event", zap.String("op", ev.Op.String()), zap.String("path", path))
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
		w.schedule(path)
		return
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		w.dropPendingLocked(path)
		w.mu.Unlock()
		if w.onRemove != nil {
			w.onRemove(path)
		}
	}
}

// schedule (re)arms the reload timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropPendingLocked(path)
	w.pending[path] = time.AfterFunc(w.quiet, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.logger.Debug("Reloading dataset file", zap.String("path", path))
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

func (w *Watcher) dropPendingLocked(path string) {
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// AddFile starts following path. Adding a followed file is a no-op.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; ok {
		return nil
	}
	if w.fs != nil {
		if err := w.refDirLocked(filepath.Dir(abs)); err != nil {
			return err
		}
	}
	w.files[abs] = struct{}{}
	return nil
}

// RemoveFile stops following path. Its directory is unwatched once no file in it remains.
func (w *Watcher) RemoveFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[abs]; !ok {
		return nil
	}
	delete(w.files, abs)
	w.dropPendingLocked(abs)
	if w.fs == nil {
		return nil
	}
	dir := filepath.Dir(abs)
	if w.refs[dir]--; w.refs[dir] <= 0 {
		delete(w.refs, dir)
		return w.fs.Remove(dir)
	}
	return nil
}

// Watching reports whether path is followed.
func (w *Watcher) Watching(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

// Files returns the followed paths in lexical order.
func (w *Watcher) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sortedFilesLocked()
}

func (w *Watcher) sortedFilesLocked() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func (w *Watcher) refDirLocked(dir string) error {
	if w.refs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return err
		}
	}
	w.refs[dir]++
	return nil
}
