package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joyfill/joydoc/internal/source"
	"go.uber.org/zap"
)

const watchDebounce = 150 * time.Millisecond

// watch revalidates a local document shortly after it is written. Each
// file's directory is watched so editors that replace the file on save are
// still seen. It blocks until ctx is cancelled.
func (r *validateRunner) watch(ctx context.Context, locations []string, report func(*outcome)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	watched := make(map[string]string)
	dirs := make(map[string]bool)
	for _, loc := range locations {
		if loc == source.Stdin || strings.HasPrefix(loc, "s3://") {
			continue
		}
		abs, err := filepath.Abs(loc)
		if err != nil {
			return err
		}
		watched[abs] = loc
		dir := filepath.Dir(abs)
		if !dirs[dir] {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("failed to watch directory %q: %w", dir, err)
			}
			dirs[dir] = true
		}
	}
	if len(watched) == 0 {
		return fmt.Errorf("-watch needs at least one local file")
	}

	r.logger.Info("watching documents", zap.Int("files", len(watched)))

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		defer mu.Unlock()
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("watch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			loc, ok := watched[filepath.Clean(event.Name)]
			if !ok {
				continue
			}
			mu.Lock()
			if t, pending := timers[loc]; pending {
				t.Stop()
			}
			timers[loc] = time.AfterFunc(watchDebounce, func() {
				if ctx.Err() != nil {
					return
				}
				report(r.check(ctx, loc))
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			r.logger.Warn("file watcher error", zap.Error(err))
		}
	}
}
