package pipeline

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

var fileLog = logger.New("pipeline:file")

// File is one unit flowing through a pipeline.
type File struct {
	// Base is the directory the source pattern was rooted at, or "" for
	// files synthesized by a stage.
	Base string
	// Path is slash-separated and relative to Base. It is the path the file
	// is written to under the destination directory.
	Path     string
	Contents []byte
	ModTime  time.Time
}

// FullPath returns Path joined onto Base in the host's path syntax.
func (f File) FullPath() string {
	return filepath.Join(f.Base, filepath.FromSlash(f.Path))
}

// Src reads every regular file matching patterns. Files are ordered by the
// first pattern that matched them and then lexicographically; a file matched
// by several patterns is read once. Patterns whose base directory does not
// exist match nothing.
func Src(patterns ...string) ([]File, error) {
	var files []File
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pattern))
		if !doublestar.ValidatePattern(rest) {
			return nil, &orchestrator.FilesystemError{Op: "glob", Path: pattern, Err: doublestar.ErrBadPattern}
		}

		matches, err := doublestar.Glob(os.DirFS(filepath.FromSlash(base)), rest, doublestar.WithFilesOnly())
		if err != nil {
			return nil, &orchestrator.FilesystemError{Op: "glob", Path: pattern, Err: err}
		}
		slices.Sort(matches)
		fileLog.Printf("Pattern %s matched %d file(s)", pattern, len(matches))

		for _, rel := range matches {
			f := File{Base: filepath.FromSlash(base), Path: rel}
			full := f.FullPath()
			if seen[full] {
				continue
			}
			seen[full] = true

			info, err := os.Stat(full)
			if err != nil {
				return nil, &orchestrator.FilesystemError{Op: "stat", Path: full, Err: err}
			}
			contents, err := os.ReadFile(full)
			if err != nil {
				return nil, &orchestrator.FilesystemError{Op: "read", Path: full, Err: err}
			}
			f.Contents = contents
			f.ModTime = info.ModTime()
			files = append(files, f)
		}
	}
	return files, nil
}

// write stores f under dir, creating parent directories, and returns the
// path written.
func write(dir string, f File) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(f.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", &orchestrator.FilesystemError{Op: "create directory", Path: filepath.Dir(target), Err: err}
	}
	if err := os.WriteFile(target, f.Contents, 0o644); err != nil {
		return "", &orchestrator.FilesystemError{Op: "write", Path: target, Err: err}
	}
	return target, nil
}

// modTime returns the modification time of path, or the zero time when it
// does not exist.
func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, &orchestrator.FilesystemError{Op: "stat", Path: path, Err: err}
	}
	return info.ModTime(), nil
}
