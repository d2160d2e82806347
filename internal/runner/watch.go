package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 200 * time.Millisecond

// watch runs the suite, then re-runs it after every batch of feature file
// changes until ctx is done. Failed runs are reported and watching goes on.
func (r *Runner) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range r.suite.Features.Paths {
		if err := watchPath(watcher, path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("couldn't watch feature path")
		}
	}

	changes := make(chan []string)
	go debounce(ctx, watcher, watchDebounce, changes)

	for {
		if err := r.runOnce(ctx); err != nil {
			log.Error().Err(err).Msg("suite run failed")
		}
		log.Info().Strs("paths", r.suite.Features.Paths).Msg("watching for feature changes")

		select {
		case <-ctx.Done():
			return nil
		case files, ok := <-changes:
			if !ok {
				return nil
			}
			log.Info().Strs("files", files).Msg("features changed, re-running suite")
		}
	}
}

func watchPath(w *fsnotify.Watcher, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if info.IsDir() {
		return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return w.Add(p)
			}
			return nil
		})
	}

	return w.Add(filepath.Dir(path))
}

// debounce batches feature file events that arrive within d of each other
// and sends the changed paths on out. It closes out when the watcher stops.
func debounce(ctx context.Context, w *fsnotify.Watcher, d time.Duration, out chan<- []string) {
	defer close(out)

	changed := make(map[string]bool)
	timer := time.NewTimer(d)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}

			// New directories are watched as well
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.Add(event.Name)
				}
			}

			if !strings.HasSuffix(event.Name, ".feature") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			changed[event.Name] = true
			timer.Reset(d)

		case <-timer.C:
			files := make([]string, 0, len(changed))
			for f := range changed {
				files = append(files, f)
			}
			changed = make(map[string]bool)

			select {
			case out <- files:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}
