package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

const watchDebounce = 100 * time.Millisecond

/*
Watch calls onChange whenever the file at path is written, replaced or
removed, until ctx is done. Bursts of events are debounced.

The parent directory is watched rather than the file itself, as FileStore
replaces the file by renaming over it.
*/
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	name := filepath.Clean(path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			glog.Warningf("watching %s: %v", path, err)
		}
	}
}

// WatchFile runs the sign-out hooks whenever another process changes the
// store's file, so a sign-out done elsewhere drops what this one cached.
// The store's own writes are ignored.
func (s *Session) WatchFile(ctx context.Context, store *FileStore) error {
	return Watch(ctx, store.Path(), func() {
		if !store.changedOnDisk() {
			return
		}
		if glog.V(2) {
			glog.Infof("session file %s changed", store.Path())
		}
		s.notify()
	})
}
