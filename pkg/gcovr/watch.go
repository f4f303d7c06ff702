package gcovr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jupierce/coverage-navtree/pkg/log"
)

// IsIndexPage reports whether name is a gcovr directory listing page.
func IsIndexPage(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, "index") && strings.HasSuffix(base, ".html")
}

// Watch calls rebuild whenever index pages in dir change, once the changes
// have been quiet for debounce. It returns when ctx is done. A rebuild that
// rewrites pages triggers one more run, which finds them current and writes
// nothing.
func Watch(ctx context.Context, logger *log.Logger, dir string, debounce time.Duration, rebuild func() error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !IsIndexPage(event.Name) {
				continue
			}
			logger.Trace("Change: %s %s", event.Op, event.Name)
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := rebuild(); err != nil {
				logger.Error("Rebuild failed: %v", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warning("Watch error: %v", err)
		}
	}
}
