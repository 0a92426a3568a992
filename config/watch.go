package config

import "github.com/fsnotify/fsnotify"

// Watcher hot-reloads a config file. It never reaches into a running
// allocator: it only re-parses and re-validates the file, handing the
// host a fresh Config (or an error) to decide what to do with.
type Watcher struct {
	w    *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching path for writes/creates and invokes onChange with
// a freshly loaded Config on every change, or with a non-nil error if the
// reload or validation failed. Call Close to stop watching.
func Watch(path string, onChange func(*Config, error)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(path); err != nil {
		w.Close()

		return nil, err
	}

	watcher := &Watcher{w: w, done: make(chan struct{})}

	go watcher.loop(path, onChange)

	return watcher, nil
}

func (watcher *Watcher) loop(path string, onChange func(*Config, error)) {
	for {
		select {
		case ev, ok := <-watcher.w.Events:
			if !ok {
				return
			}

			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			cfg, err := Load(path)
			if err == nil {
				err = cfg.CheckAPIVersion()
			}

			onChange(cfg, err)
		case err, ok := <-watcher.w.Errors:
			if !ok {
				return
			}

			onChange(nil, err)
		case <-watcher.done:
			return
		}
	}
}

// Close stops the watcher and releases its underlying fsnotify handle.
func (watcher *Watcher) Close() error {
	close(watcher.done)

	return watcher.w.Close()
}
