// Copyright (C) 2025 The QAPulse Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates the static-tier cache entry when the snapshot
// file changes on disk, so operators can swap the file without waiting
// out the TTL or restarting the service.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchStaticFile watches path and calls onChange whenever the file is
// written, created, or replaced. The parent directory is watched rather
// than the file itself because editors and atomic writers replace the
// inode.
func WatchStaticFile(path string, onChange func(), logger *slog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("watch directory %s: %w", dir, err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	base := filepath.Base(path)
	w := &Watcher{watcher: fsWatcher, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fsWatcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != base {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				logger.Info("static snapshot file changed", "path", path, "op", event.Op.String())
				onChange()
			case err, ok := <-fsWatcher.Errors:
				if !ok {
					return
				}
				logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return w, nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
