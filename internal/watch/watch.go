// Package watch provides file watching for schema and query files.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last write before the
// callback runs.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches files for changes
type Watcher struct {
	files    map[string]bool
	callback func(changed string) error
	onError  func(error)
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher creates a watcher over files. callback receives the path of
// the file that changed last; errors it returns go to onError and do not
// stop the watcher.
func NewWatcher(files []string, callback func(changed string) error, onError func(error)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		files:    map[string]bool{},
		callback: callback,
		onError:  onError,
		watcher:  watcher,
		debounce: DefaultDebounce,
	}
	dirs := map[string]bool{}
	for _, f := range files {
		absPath, err := filepath.Abs(f)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		w.files[absPath] = true

		// Watch the directory so editors that replace the file are seen.
		dir := filepath.Dir(absPath)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch directory: %w", err)
		}
		dirs[dir] = true
	}
	if w.onError == nil {
		w.onError = func(error) {}
	}
	return w, nil
}

// SetDebounce changes the quiet period.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Run calls the callback once, then after every change until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.callback(""); err != nil {
		w.onError(fmt.Errorf("initial callback failed: %w", err))
	}

	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()
	var debounceCh <-chan time.Time
	var changed string

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			eventPath, err := filepath.Abs(event.Name)
			if err != nil || !w.files[eventPath] {
				continue
			}
			changed = eventPath
			debounceTimer.Reset(w.debounce)
			debounceCh = debounceTimer.C

		case <-debounceCh:
			if err := w.callback(changed); err != nil {
				w.onError(err)
			}
			debounceCh = nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.onError(err)

		case <-ctx.Done():
			debounceTimer.Stop()
			return nil
		}
	}
}
