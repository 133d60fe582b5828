//go:build !integration

package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebuild/sitebuild/pkg/testutil"
)

func startWatch(t *testing.T, fn func(ctx context.Context, ready func()) error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- fn(ctx, func() { close(ready) })
	}()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("watch returned before becoming ready: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("watch did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watch did not stop after cancellation")
		}
	})
}

func TestWatchCoalescesChangesIntoOneRun(t *testing.T) {
	dir := testutil.TempDir(t, "orch-watch-*")
	runs := make(chan struct{}, 8)

	o := New(WithDebounce(150 * time.Millisecond))
	o.Register("sass", nil, func(ctx context.Context) error {
		runs <- struct{}{}
		return nil
	})

	startWatch(t, func(ctx context.Context, ready func()) error {
		return o.Watch(ctx, []string{filepath.ToSlash(dir) + "/**/*.scss"}, One("sass"), OnReady(ready))
	})

	testutil.WriteFile(t, dir, "main.scss", "a{}")
	testutil.WriteFile(t, dir, "_vars.scss", "$a: 1;")
	testutil.WriteFile(t, dir, "partials/_grid.scss", "b{}")

	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatal("change did not trigger a run")
	}

	select {
	case <-runs:
		t.Fatal("a burst of changes should trigger a single run")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatchKeepsListeningAfterFailure(t *testing.T) {
	dir := testutil.TempDir(t, "orch-watch-fail-*")
	var calls atomic.Int32
	errs := make(chan error, 8)
	runs := make(chan int32, 8)

	o := New()
	o.Register("sass", nil, func(ctx context.Context) error {
		n := calls.Add(1)
		runs <- n
		if n == 1 {
			return &TransformationError{Stage: "sass", File: "main.scss", Line: 1, Column: 3, Message: "expected \"{\""}
		}
		return nil
	})

	startWatch(t, func(ctx context.Context, ready func()) error {
		return o.Watch(ctx, []string{filepath.ToSlash(dir) + "/*.scss"}, One("sass"),
			WatchDebounce(50*time.Millisecond),
			OnReady(ready),
			OnRunError(func(err error) { errs <- err }),
		)
	})

	testutil.WriteFile(t, dir, "main.scss", "a")
	require.Equal(t, int32(1), waitFor(t, runs))

	select {
	case err := <-errs:
		var tErr *TransformationError
		require.ErrorAs(t, err, &tErr)
		assert.Equal(t, 1, tErr.Line)
	case <-time.After(5 * time.Second):
		t.Fatal("run error was not reported")
	}

	testutil.WriteFile(t, dir, "main.scss", "a{}")
	assert.Equal(t, int32(2), waitFor(t, runs), "watching continues after a failed run")
}

func waitFor(t *testing.T, ch <-chan int32) int32 {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		return 0
	}
}

func TestWatchValidatesTarget(t *testing.T) {
	o := New()
	err := o.Watch(context.Background(), []string{"src/**/*.scss"}, One("nope"))
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestWatchTasksRequiresGlobs(t *testing.T) {
	o := New()
	o.Register("clean", nil, nil)

	err := o.WatchTasks(context.Background(), []string{"clean"})
	assert.True(t, errors.Is(err, ErrNothingToWatch))
}

func TestWatchTasksRerunsOwnTask(t *testing.T) {
	dir := testutil.TempDir(t, "orch-watch-tasks-*")
	jsRuns := make(chan int32, 8)
	var n atomic.Int32

	o := New(WithDebounce(50 * time.Millisecond))
	o.Register("js", nil, func(ctx context.Context) error {
		jsRuns <- n.Add(1)
		return nil
	}, WithWatch(filepath.ToSlash(dir)+"/js/*.js"))
	o.Register("clean", nil, nil)

	testutil.WriteFile(t, dir, "js/.keep", "")

	var readyCount atomic.Int32
	startWatch(t, func(ctx context.Context, ready func()) error {
		return o.WatchTasks(ctx, []string{"js", "clean"}, OnReady(func() {
			if readyCount.Add(1) == 1 {
				ready()
			}
		}))
	})

	testutil.WriteFile(t, dir, "js/app.js", "var a;")
	assert.Equal(t, int32(1), waitFor(t, jsRuns))
}

func TestWatchTasksStopsWhenAListenerFails(t *testing.T) {
	dir := testutil.TempDir(t, "orch-watch-fail-*")
	testutil.WriteFile(t, dir, "good/.keep", "")

	o := New(WithDebounce(50 * time.Millisecond))
	o.Register("good", nil, nil, WithWatch(filepath.ToSlash(dir)+"/good/*.txt"))
	o.Register("bad", nil, nil, WithWatch(filepath.ToSlash(dir)+"/a/[.txt"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- o.WatchTasks(ctx, []string{"good", "bad"}) }()

	select {
	case err := <-done:
		var fsErr *FilesystemError
		require.ErrorAs(t, err, &fsErr)
		assert.Equal(t, "watch", fsErr.Op)
		assert.NoError(t, ctx.Err(), "the error should surface before the context ends")
	case <-time.After(5 * time.Second):
		t.Fatal("WatchTasks kept running after a listener failed to start")
	}
}
