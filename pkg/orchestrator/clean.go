package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sitebuild/sitebuild/pkg/logger"
)

var cleanLog = logger.New("orchestrator:clean")

// ErrUnsafeClean is wrapped by the FilesystemError returned when a clean
// target is the working directory or one of its ancestors.
var ErrUnsafeClean = errors.New("refusing to delete the working directory or one of its parents")

// Clean recursively deletes each target in order. Targets that do not exist
// are skipped, so Clean is idempotent. The first failure is returned as a
// *FilesystemError and the remaining targets are left untouched.
func Clean(targets ...string) error {
	wd, err := os.Getwd()
	if err != nil {
		return &FilesystemError{Op: "resolve", Path: ".", Err: err}
	}

	for _, target := range targets {
		if target == "" {
			continue
		}

		abs, err := filepath.Abs(target)
		if err != nil {
			return &FilesystemError{Op: "resolve", Path: target, Err: err}
		}
		if within(wd, abs) {
			return &FilesystemError{Op: "remove", Path: target, Err: ErrUnsafeClean}
		}

		if _, err := os.Lstat(abs); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				cleanLog.Printf("Nothing to clean at %s", target)
				continue
			}
			return &FilesystemError{Op: "stat", Path: target, Err: err}
		}

		cleanLog.Printf("Removing %s", target)
		if err := os.RemoveAll(abs); err != nil {
			return &FilesystemError{Op: "remove", Path: target, Err: err}
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
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !hasParentPrefix(rel))
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

// CleanAction adapts Clean for use as a task action.
func CleanAction(targets ...string) Action {
	return func(ctx context.Context) error {
		if err := Clean(targets...); err != nil {
			return fmt.Errorf("clean: %w", err)
		}
		return nil
	}
}
