package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"calcpad/logger"

	"github.com/fsnotify/fsnotify"
)

// watchDebounce - события внутри окна сливаются в один вызов onChange
const watchDebounce = 50 * time.Millisecond

// Watch вызывает onChange, когда файл path изменяется на диске.
// Следит за каталогом, потому что FileStore заменяет файл через rename.
// Возвращается сразу; наблюдение идет до отмены ctx.
func Watch(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("resolving %s: %w", path, err)
	}

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", filepath.Dir(absPath), err)
	}

	log := logger.Global().WithPrefix("watch")

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				name, err := filepath.Abs(event.Name)
				if err != nil || name != absPath {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					log.Debug("%s changed: %s", absPath, event.Op)
					if timer == nil {
						timer = time.AfterFunc(watchDebounce, onChange)
					} else {
						timer.Reset(watchDebounce)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn("watcher error: %v", err)
			}
		}
	}()

	return nil
}
