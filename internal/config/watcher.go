package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file when it changes on disk. It is used to
// apply concurrency changes to a run already in flight.
type Watcher struct {
	path    string
	onLoad  func(*Config)
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	done chan struct{}
}

// Watch starts watching path and calls onLoad with each successfully
// reloaded config. Reload errors are ignored; the previous config stays
// in effect until a valid file appears.
func Watch(path string, onLoad func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file: editors that rename a
	// temp file over the target would otherwise drop the watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		path:    path,
		onLoad:  onLoad,
		watcher: fw,
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := LoadFromPath(w.path)
			if err != nil {
				continue
			}
			w.onLoad(cfg)
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.done:
	default:
		close(w.done)
		w.watcher.Close()
	}
}
