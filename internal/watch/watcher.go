package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/corpusbuild/internal/discovery"
	"git.home.luguber.info/inful/corpusbuild/internal/events"
	ferrors "git.home.luguber.info/inful/corpusbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/corpusbuild/internal/logfields"
)

// Watcher turns filesystem notifications under the source tree into
// ChangeDetected events. Ignored paths never produce events and ignored
// directories, such as a nested output tree, are never watched.
type Watcher struct {
	disc  *discovery.Discoverer
	extra []string // absolute roots outside the source tree; changes there request a full rebuild
	bus   *events.Bus
	log   *slog.Logger
	fsw   *fsnotify.Watcher
}

// NewWatcher registers recursive watches on the source root and on every
// extra root lying outside it.
func NewWatcher(disc *discovery.Discoverer, bus *events.Bus, log *slog.Logger, extra ...string) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "create filesystem watcher").Fatal().Build()
	}
	w := &Watcher{disc: disc, bus: bus, log: log, fsw: fsw}
	if err := w.addDirsRecursive(disc.Root()); err != nil {
		_ = fsw.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryWatch, "watch source tree").
			WithContext("root", disc.Root()).Fatal().Build()
	}
	for _, root := range extra {
		if root == "" {
			continue
		}
		if _, inside := disc.Rel(root); inside || root == disc.Root() {
			continue
		}
		if err := w.addDirsRecursive(root); err != nil {
			w.log.Warn("Failed to watch directory", slog.String("dir", root), logfields.Error(err))
			continue
		}
		w.extra = append(w.extra, root)
	}
	return w, nil
}

// Close releases the underlying watches.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run forwards relevant events until ctx is canceled or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WarnContext(ctx, "Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || ev.Op == fsnotify.Chmod {
		return
	}
	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	evt := events.ChangeDetected{DetectedAt: time.Now()}
	if rel, ok := w.disc.Rel(ev.Name); ok {
		if w.disc.Ignored(rel, isDir) {
			return
		}
		evt.Paths = []string{rel}
	} else if w.underExtra(ev.Name) {
		evt.Full = true
	} else {
		return
	}

	if isDir && ev.Has(fsnotify.Create) {
		if err := w.addDirsRecursive(ev.Name); err != nil {
			w.log.WarnContext(ctx, "Failed to watch new directory", slog.String("dir", ev.Name), logfields.Error(err))
		}
	}
	w.log.DebugContext(ctx, "File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	if err := w.bus.Publish(ctx, evt); err != nil && ctx.Err() == nil {
		w.log.WarnContext(ctx, "Failed to publish change", logfields.Error(err))
	}
}

func (w *Watcher) underExtra(abs string) bool {
	for _, root := range w.extra {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, ok := w.disc.Rel(p); ok && w.disc.Ignored(rel, true) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			w.log.Warn("Watch add failed", slog.String("dir", p), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent reports editor swap, backup and lock files.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, ".#"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == ".DS_Store",
		base == "Thumbs.db":
		return true
	}
	return false
}
