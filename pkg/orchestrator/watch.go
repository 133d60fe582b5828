package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/watcher"
)

var watchLog = logger.New("orchestrator:watch")

// ErrNothingToWatch is returned by WatchTasks when none of the named tasks
// declares watch globs.
var ErrNothingToWatch = errors.New("no watched tasks")

type watchConfig struct {
	debounce time.Duration
	onError  func(error)
	onChange func(paths []string)
	onReady  func()
}

// WatchOption configures Watch.
type WatchOption func(*watchConfig)

// WatchDebounce overrides the orchestrator's debounce window for one listener.
func WatchDebounce(d time.Duration) WatchOption {
	return func(c *watchConfig) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// OnRunError receives errors of runs triggered by changes. The default
// prints them to stderr.
func OnRunError(fn func(error)) WatchOption {
	return func(c *watchConfig) {
		c.onError = fn
	}
}

// OnChange is called with each batch of changed paths before the run starts.
func OnChange(fn func(paths []string)) WatchOption {
	return func(c *watchConfig) {
		c.onChange = fn
	}
}

// OnReady is called once the listener is registered and events are being
// collected.
func OnReady(fn func()) WatchOption {
	return func(c *watchConfig) {
		c.onReady = fn
	}
}

// Watch reruns onChange each time files matching globs are created, modified
// or removed. Bursts of changes within the debounce window trigger a single
// run. Failed runs are reported and watching continues, so a broken
// stylesheet can be fixed without restarting. Watch blocks until ctx is done.
//
// onChange is validated up front; unknown tasks or cycles are returned
// immediately.
func (o *Orchestrator) Watch(ctx context.Context, globs []string, onChange Step, opts ...WatchOption) error {
	if err := o.Validate(onChange); err != nil {
		return err
	}

	cfg := watchConfig{
		debounce: o.debounce,
		onError: func(err error) {
			fmt.Fprintln(os.Stderr, FormatError(err))
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := watcher.New(globs, watcher.WithDebounce(cfg.debounce))
	if err != nil {
		return &FilesystemError{Op: "watch", Path: fmt.Sprint(globs), Err: err}
	}
	defer w.Close()

	watchLog.Printf("Watching %v -> [%s] (debounce %s)", globs, onChange, cfg.debounce)
	if cfg.onReady != nil {
		cfg.onReady()
	}

	return w.Run(ctx, func(paths []string) {
		watchLog.Printf("%d changed paths, running [%s]", len(paths), onChange)
		if cfg.onChange != nil {
			cfg.onChange(paths)
		}
		if err := o.Run(ctx, onChange); err != nil {
			if ctx.Err() != nil {
				return
			}
			cfg.onError(err)
		}
	})
}

// WatchTasks watches each named task's own globs and reruns that task when
// they change. Tasks without globs are skipped. It blocks until ctx is done
// or a listener fails; a failing listener stops the others and its error is
// returned.
func (o *Orchestrator) WatchTasks(ctx context.Context, names []string, opts ...WatchOption) error {
	if err := o.Validate(oneEach(names)...); err != nil {
		return err
	}

	var watched []Task
	for _, name := range names {
		t, _ := o.Lookup(name)
		if len(t.Watch) == 0 {
			watchLog.Printf("Task %q has no watch globs, skipping", name)
			continue
		}
		watched = append(watched, t)
	}
	if len(watched) == 0 {
		return ErrNothingToWatch
	}

	p := pool.New().WithErrors().WithContext(ctx).WithCancelOnError()
	for _, t := range watched {
		p.Go(func(ctx context.Context) error {
			return o.Watch(ctx, t.Watch, One(t.Name), opts...)
		})
	}
	return p.Wait()
}

// WatchedTasks returns the names of registered tasks that declare watch
// globs, sorted.
func (o *Orchestrator) WatchedTasks() []string {
	var names []string
	for _, info := range o.Tasks() {
		if len(info.Watch) > 0 {
			names = append(names, info.Name)
		}
	}
	return names
}
