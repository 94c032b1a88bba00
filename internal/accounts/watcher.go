package accounts

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the store's cache whenever the backing file is written
// or replaced outside the server, so a DM can hand-edit records while a
// session runs. It blocks until ctx is cancelled or the watcher fails.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files by rename
	// and the watch would otherwise die with the old inode.
	dir := filepath.Dir(s.path)
	if dir == "" {
		dir = "."
	}
	// The store creates its directory lazily on the first flush; the watch
	// needs it to exist up front.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.logger.Printf("accounts: %s changed on disk, reloading", s.path)
			s.Invalidate()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Printf("accounts: watcher error: %v", err)
		}
	}
}
