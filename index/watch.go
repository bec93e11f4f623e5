package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultMergeEventsDelay = 500 * time.Millisecond

// Watch re-syncs the root whenever something below it changes. Bursts of events
// are merged into one sync. It returns once the watches are registered and keeps
// running until ctx is done.
func (s *Service) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	root, err := filepath.Abs(s.root)
	if err != nil {
		w.Close()
		return fmt.Errorf("failed to resolve %s: %w", s.root, err)
	}

	if err := s.addWatches(w, root); err != nil {
		w.Close()
		return err
	}

	go s.watchLoop(ctx, w)
	return nil
}

func (s *Service) addWatches(w *fsnotify.Watcher, dir string) error {
	if !s.recursive {
		return w.Add(dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if err := w.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *Service) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()

	delay := s.mergeEventsDelay
	if delay <= 0 {
		delay = defaultMergeEventsDelay
	}

	timer := time.NewTimer(delay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				continue
			}

			if s.recursive && ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := s.addWatches(w, ev.Name); err != nil {
						s.log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}

			s.log.Debug("file event", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(delay)

		case <-timer.C:
			if _, err := s.Sync(ctx); err != nil {
				s.log.Error("failed to sync documents", "error", err)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.log.Error("watcher error", "error", err)
		}
	}
}
