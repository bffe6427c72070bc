package skills

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow coalesces bursts of filesystem events into one reload
// signal.
const debounceWindow = 150 * time.Millisecond

// Watcher signals when a filesystem-backed skill source changes, so the
// caller can re-run the loader. It watches each source root and its
// immediate child directories; the loader itself stays cacheless.
type Watcher struct {
	dirs   []string
	logger *slog.Logger
	events chan struct{}
}

// NewWatcher builds a watcher over the given source directories. Blank
// entries are ignored.
func NewWatcher(dirs []string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	kept := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if strings.TrimSpace(d) != "" {
			kept = append(kept, d)
		}
	}
	return &Watcher{
		dirs:   kept,
		logger: logger,
		events: make(chan struct{}, 1),
	}
}

// Events is the reload signal channel. It closes when the watcher stops.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Start begins watching in a background goroutine until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("skills: new watcher: %w", err)
	}

	for _, dir := range w.dirs {
		w.addSource(fsw, dir)
	}

	go w.loop(ctx, fsw)
	return nil
}

// addSource registers a source root and its existing skill directories.
// Absent roots are skipped; they may appear later via a parent event.
func (w *Watcher) addSource(fsw *fsnotify.Watcher, dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		w.logger.Warn("skills watcher: abs failed", "dir", dir, "err", err)
		return
	}
	if err := fsw.Add(abs); err != nil {
		if os.IsNotExist(err) {
			return
		}
		w.logger.Warn("skills watcher: add failed", "dir", abs, "err", err)
		return
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return
	}
	for _, ent := range entries {
		if ent.IsDir() {
			_ = fsw.Add(filepath.Join(abs, ent.Name()))
		}
	}
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	defer func() {
		_ = fsw.Close()
		close(w.events)
	}()

	var pending bool
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// New skill directories get watched as they appear, and count
			// as relevant even if the SKILL.md creation event is missed in
			// the registration race.
			createdDir := false
			if ev.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					createdDir = true
					_ = fsw.Add(ev.Name)
				}
			}
			if filepath.Base(ev.Name) != ManifestName && !createdDir {
				continue
			}

			pending = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounceWindow)
			}
			timerC = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("skills watcher error", "err", err)

		case <-timerC:
			timerC = nil
			if pending {
				pending = false
				select {
				case w.events <- struct{}{}:
				default:
				}
			}
		}
	}
}
