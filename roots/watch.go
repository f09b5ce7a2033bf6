package roots

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch loads path into r and reloads it whenever the file is written,
// created or renamed into place. It blocks until ctx is done.
//
// Reload errors are logged and the registry keeps its previous state.
// Entries removed from the file stay registered.
func Watch(ctx context.Context, path string, r *Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	path = filepath.Clean(path)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// Watch the directory so editors that replace the file are seen.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}

	reload := func() {
		if err := r.LoadFile(path); err != nil {
			logger.Warn("roots: reload failed", "path", path, "error", err)
			return
		}
		logger.Debug("roots: reloaded", "path", path)
	}
	reload()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("roots: watch error", "path", path, "error", err)
		}
	}
}
