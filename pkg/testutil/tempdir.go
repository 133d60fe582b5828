// Package testutil contains helpers shared by package tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

var (
	testRunDir     string
	testRunDirOnce sync.Once
)

// GetTestRunDir returns a directory shared by every test in this process,
// created on first use under the system temp dir.
func GetTestRunDir() string {
	testRunDirOnce.Do(func() {
		base := filepath.Join(os.TempDir(), "sitebuild-test-runs")
		name := fmt.Sprintf("%s-%d", time.Now().Format("20060102-150405"), os.Getpid())
		dir := filepath.Join(base, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			panic(fmt.Sprintf("failed to create test run directory: %v", err))
		}
		testRunDir = dir
	})
	return testRunDir
}

// TempDir creates a directory matching pattern under GetTestRunDir and removes
// it when t finishes.
func TempDir(t testing.TB, pattern string) string {
	t.Helper()

	dir, err := os.MkdirTemp(GetTestRunDir(), pattern)
	if err != nil {
		t.Fatalf("failed to create temp directory: %v", err)
	}
	t.Cleanup(func() {
		_ = os.RemoveAll(dir)
	})
	return dir
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t testing.TB, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// Chdir switches the working directory to dir for the rest of the test.
func Chdir(t testing.TB, dir string) {
	t.Helper()

	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change to %s: %v", dir, err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(old)
	})
}
