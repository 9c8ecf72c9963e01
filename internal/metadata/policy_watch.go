package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchPolicy reloads the policy file whenever it changes on disk and hands
// every successfully parsed version to apply. A file that fails to parse is
// logged and the previous policy stays in effect. WatchPolicy blocks until
// ctx is done.
func WatchPolicy(ctx context.Context, path string, logger *slog.Logger, apply func(Policy)) error {
	logger = logger.With("component", "policy_watcher", "path", path)

	filePath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve policy path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create policy watcher: %w", err)
	}
	defer watcher.Close()

	// Editors replace files by rename, so watch the directory
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	logger.Info("Watching unpack policy")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(filePath) || !policyEventChange(event) {
				continue
			}

			policy, err := LoadPolicy(filePath)
			if err != nil {
				logger.Warn("Ignoring unreadable unpack policy", "error", err)
				continue
			}
			logger.Info("Unpack policy reloaded", "event", event.Op.String())
			apply(policy)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Policy watcher error", "error", err)
		}
	}
}

func policyEventChange(event fsnotify.Event) bool {
	return event.Op&fsnotify.Write == fsnotify.Write ||
		event.Op&fsnotify.Create == fsnotify.Create
}
