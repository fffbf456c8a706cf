package policy

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the deny-list whenever the policy file changes on disk. It
// blocks until ctx is canceled. Reload failures keep the previous pattern set
// so a malformed edit never drops the gate.
func (f *Filter) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(f.path); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := f.reload(); err != nil {
				f.logger.Error("denylist reload failed; keeping previous patterns",
					zap.String("path", f.path), zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error("denylist watcher error", zap.Error(err))
		}
	}
}
