// Package watch reports source changes under a set of factor directories.
package watch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/alexisbeaulieu97/construct/internal/build"
)

// DefaultDebounce is the quiet period after the last event before a change
// batch is emitted.
const DefaultDebounce = 100 * time.Millisecond

// Watcher monitors factor directories, recursively, and emits the changed
// paths in debounced batches. Build state directories and dotfiles are
// ignored so builds do not trigger themselves.
type Watcher struct {
	Dirs    []string
	Changes <-chan []string

	changes  chan []string
	quit     chan struct{}
	done     chan struct{}
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// New creates a watcher for dirs. A zero debounce uses DefaultDebounce.
func New(dirs []string, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ch := make(chan []string, 4)
	return &Watcher{
		Dirs:     dirs,
		Changes:  ch,
		changes:  ch,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		debounce: debounce,
	}, nil
}

// Start registers every directory below Dirs and begins watching.
func (w *Watcher) Start() error {
	for _, dir := range w.Dirs {
		if err := w.addTree(dir); err != nil {
			w.watcher.Close()
			return err
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and the Changes channel.
func (w *Watcher) Stop() {
	close(w.quit)
	w.watcher.Close()
	<-w.done
	close(w.changes)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	pending := make(map[string]struct{})
	var last time.Time
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.skip(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) {
				// New directories must be watched explicitly.
				_ = w.addTree(event.Name)
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = struct{}{}
				last = time.Now()
			}

		case <-ticker.C:
			if len(pending) == 0 || time.Since(last) < w.debounce {
				continue
			}
			batch := make([]string, 0, len(pending))
			for path := range pending {
				batch = append(batch, path)
			}
			sort.Strings(batch)
			pending = make(map[string]struct{})
			select {
			case w.changes <- batch:
			case <-w.quit:
				return
			}

		case <-w.quit:
			return

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Watch errors are non-fatal.
		}
	}
}

// skip reports whether any element of path below a watched root is ignored.
func (w *Watcher) skip(path string) bool {
	for _, root := range w.Dirs {
		rel, err := filepath.Rel(root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if ignored(part) {
				return true
			}
		}
		return false
	}
	return ignored(filepath.Base(path))
}

func ignored(name string) bool {
	return strings.HasPrefix(name, ".") || name == build.CacheDir || name == build.IntegralDir
}
