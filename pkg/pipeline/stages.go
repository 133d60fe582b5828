package pipeline

import (
	"bytes"
	"context"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Concat joins the contents of all files, separated by a newline, into a
// single file called name. The result carries the newest input ModTime.
func Concat(name string) Stage {
	return StageFunc{StageName: "concat", Fn: func(_ context.Context, files []File) ([]File, error) {
		if len(files) == 0 {
			return nil, nil
		}
		parts := make([][]byte, 0, len(files))
		var newest time.Time
		for _, f := range files {
			parts = append(parts, f.Contents)
			if f.ModTime.After(newest) {
				newest = f.ModTime
			}
		}
		return []File{{
			Path:     filepath.ToSlash(name),
			Contents: bytes.Join(parts, []byte("\n")),
			ModTime:  newest,
		}}, nil
	}}
}

// Rename replaces the extension of every file with ext, e.g. ".css".
func Rename(ext string) Stage {
	return StageFunc{StageName: "rename", Fn: func(_ context.Context, files []File) ([]File, error) {
		out := make([]File, len(files))
		for i, f := range files {
			f.Path = strings.TrimSuffix(f.Path, path.Ext(f.Path)) + ext
			out[i] = f
		}
		return out, nil
	}}
}

// Changed drops files whose counterpart under dir exists and is not older
// than the source.
func Changed(dir string) Stage {
	return StageFunc{StageName: "changed", Fn: func(_ context.Context, files []File) ([]File, error) {
		var out []File
		for _, f := range files {
			target := filepath.Join(dir, filepath.FromSlash(f.Path))
			destTime, err := modTime(target)
			if err != nil {
				return nil, err
			}
			if !destTime.IsZero() && !destTime.Before(f.ModTime) {
				fileLog.Printf("Skipping unchanged %s", f.Path)
				continue
			}
			out = append(out, f)
		}
		return out, nil
	}}
}

// Tap passes files through unchanged after handing them to fn.
func Tap(fn func(files []File)) Stage {
	return StageFunc{StageName: "tap", Fn: func(_ context.Context, files []File) ([]File, error) {
		fn(files)
		return files, nil
	}}
}
