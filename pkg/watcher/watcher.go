// Package watcher turns fsnotify events for a set of glob patterns into
// debounced batches of changed paths.
//
// fsnotify watches single directories, so the watcher registers the static
// base directory of every pattern together with all of its subdirectories,
// and picks up directories created later. When a base directory does not
// exist yet its nearest existing ancestor is watched until it appears.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var watcherLog = logger.New("watcher:watcher")

// Watcher reports changes to files matching its patterns.
type Watcher struct {
	fsw      *fsnotify.Watcher
	patterns []string
	roots    []string
	debounce time.Duration
	watched  map[string]bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits after the last matching event
// before reporting a batch.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New starts watching the directories needed to observe patterns. Patterns
// use doublestar syntax ("**", "{a,b}") with forward slashes.
func New(patterns []string, opts ...Option) (*Watcher, error) {
	if len(patterns) == 0 {
		return nil, errors.New("no patterns to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		debounce: constants.DefaultDebounce,
		watched:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, p := range patterns {
		pattern := normalize(p)
		if !doublestar.ValidatePattern(pattern) {
			fsw.Close()
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
		base, _ := doublestar.SplitPattern(pattern)
		w.patterns = append(w.patterns, pattern)
		w.roots = append(w.roots, filepath.FromSlash(base))
	}

	for _, root := range w.roots {
		if err := w.addRoot(root); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	watcherLog.Printf("Watching %d patterns across %d directories", len(w.patterns), len(w.watched))
	return w, nil
}

// Patterns returns the normalized patterns being watched.
func (w *Watcher) Patterns() []string {
	return append([]string(nil), w.patterns...)
}

// Match reports whether path matches any watched pattern.
func (w *Watcher) Match(path string) bool {
	name := normalize(path)
	for _, pattern := range w.patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers batches of changed paths to onBatch until ctx is done. A batch
// is emitted once no matching event has arrived for the debounce window.
// onBatch runs on the Run goroutine, so batches never overlap; changes made
// while it runs are reported in the next batch.
func (w *Watcher) Run(ctx context.Context, onBatch func(paths []string)) error {
	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.NewTimer(w.debounce)
		fire = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			watcherLog.Print("Context done, stopping watcher")
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Has(fsnotify.Create) {
				for _, path := range w.addCreated(event.Name) {
					pending[path] = struct{}{}
				}
			}

			if !w.Match(event.Name) {
				if len(pending) > 0 && fire == nil {
					schedule()
				}
				continue
			}
			watcherLog.Printf("Change: %s %s", event.Op, event.Name)
			pending[filepath.Clean(event.Name)] = struct{}{}
			schedule()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Overflow and similar errors lose events but leave the watch intact.
			watcherLog.Printf("Watcher error: %v", err)

		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for path := range pending {
				paths = append(paths, path)
			}
			sort.Strings(paths)
			pending = make(map[string]struct{})

			watcherLog.Printf("Emitting batch of %d changes", len(paths))
			onBatch(paths)
		}
	}
}

// addRoot watches root recursively, or its nearest existing ancestor when root
// does not exist yet.
func (w *Watcher) addRoot(root string) error {
	dir := root
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return fmt.Errorf("no existing directory to watch for %s", root)
		}
		dir = parent
	}

	if dir != root {
		watcherLog.Printf("%s does not exist, watching %s until it appears", root, dir)
		return w.add(dir)
	}
	_, err := w.addTree(dir)
	return err
}

// addTree watches dir and every directory below it, returning the files found
// that match a pattern.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var matched []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.add(path)
		}
		if w.Match(path) {
			matched = append(matched, filepath.Clean(path))
		}
		return nil
	})
	return matched, err
}

func (w *Watcher) add(dir string) error {
	dir = filepath.Clean(dir)
	if w.watched[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watched[dir] = true
	return nil
}

// addCreated starts watching a newly created directory when it lies on the
// way to, or inside, a watched root. Files that were created inside it before
// the watch was registered are returned so they are not missed.
func (w *Watcher) addCreated(path string) []string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil
	}

	path = filepath.Clean(path)
	for _, root := range w.roots {
		switch {
		case within(path, root):
			matched, err := w.addTree(path)
			if err != nil {
				watcherLog.Printf("Failed to watch new directory %s: %v", path, err)
			}
			return matched
		case within(root, path):
			if err := w.addRoot(root); err != nil {
				watcherLog.Printf("Failed to watch %s: %v", root, err)
				return nil
			}
			if w.watched[filepath.Clean(root)] {
				matched, _ := w.addTree(root)
				return matched
			}
			return nil
		}
	}
	return nil
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
