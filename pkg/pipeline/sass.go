package pipeline

import (
	"context"
	"errors"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

// SassOptions configures the Sass stage.
type SassOptions struct {
	// Command is the compiler and its leading arguments; defaults to "sass".
	Command    []string
	SourceMaps bool
	LoadPaths  []string
	Runner     CommandRunner
}

// sassLocation matches the trailing location line of a compiler error,
// e.g. "  src/scss/main.scss 3:13  root stylesheet".
var sassLocation = regexp.MustCompile(`(?m)^\s*(\S+\.s[ac]ss) (\d+):(\d+)`)

// Sass compiles every entry stylesheet with the external compiler. Partials
// (files whose name starts with "_") are dropped; they are only reachable
// through imports. Output keeps the source path; follow with Rename(".css").
func Sass(opts SassOptions) Stage {
	command := opts.Command
	if len(command) == 0 {
		command = []string{"sass"}
	}
	runner := runnerOrDefault(opts.Runner)

	return StageFunc{StageName: "sass", Fn: func(ctx context.Context, files []File) ([]File, error) {
		var out []File
		for _, f := range files {
			if strings.HasPrefix(path.Base(f.Path), "_") {
				continue
			}

			source := f.FullPath()
			args := append([]string{}, command[1:]...)
			args = append(args, "--load-path="+filepath.Dir(source))
			for _, p := range opts.LoadPaths {
				args = append(args, "--load-path="+p)
			}
			if opts.SourceMaps {
				args = append(args, "--embed-source-map")
			} else {
				args = append(args, "--no-source-map")
			}
			args = append(args, source)

			stdout, stderr, err := runner.Run(ctx, Command{Name: command[0], Args: args})
			if err != nil {
				return nil, sassError(source, stderr, err)
			}
			f.Contents = stdout
			out = append(out, f)
		}
		return out, nil
	}}
}

func sassError(source string, stderr []byte, err error) error {
	tErr := &orchestrator.TransformationError{
		Stage:   "sass",
		File:    source,
		Message: firstLine(stderr, err),
		Err:     err,
	}
	if m := sassLocation.FindSubmatch(stderr); m != nil {
		tErr.File = string(m[1])
		tErr.Line, _ = strconv.Atoi(string(m[2]))
		tErr.Column, _ = strconv.Atoi(string(m[3]))
	}
	return tErr
}

// PrefixOptions configures the vendor-prefix stage.
type PrefixOptions struct {
	Enabled bool
	// Browsers is a browserslist query; defaults to "last 2 versions".
	Browsers string
	// Command reads CSS on stdin and writes prefixed CSS to stdout.
	Command []string
	Runner  CommandRunner
}

// postcssLocation matches "<css input>:3:5: Unknown word".
var postcssLocation = regexp.MustCompile(`:(\d+):(\d+): (.+)`)

// Prefix adds vendor prefixes to stylesheets through an external command.
// A disabled stage passes files through.
func Prefix(opts PrefixOptions) Stage {
	browsers := opts.Browsers
	if browsers == "" {
		browsers = constants.DefaultBrowsers
	}
	runner := runnerOrDefault(opts.Runner)

	return StageFunc{StageName: "prefix", Fn: func(ctx context.Context, files []File) ([]File, error) {
		if !opts.Enabled || len(opts.Command) == 0 {
			return files, nil
		}
		out := make([]File, len(files))
		for i, f := range files {
			stdout, stderr, err := runner.Run(ctx, Command{
				Name:  opts.Command[0],
				Args:  opts.Command[1:],
				Stdin: f.Contents,
				Env:   []string{"BROWSERSLIST=" + browsers},
			})
			if err != nil {
				tErr := &orchestrator.TransformationError{
					Stage:   "prefix",
					File:    f.FullPath(),
					Message: firstLine(stderr, err),
					Err:     err,
				}
				if m := postcssLocation.FindSubmatch(stderr); m != nil {
					tErr.Line, _ = strconv.Atoi(string(m[1]))
					tErr.Column, _ = strconv.Atoi(string(m[2]))
					tErr.Message = strings.TrimSpace(string(m[3]))
				}
				return nil, tErr
			}
			f.Contents = stdout
			out[i] = f
		}
		return out, nil
	}}
}

// firstLine returns the first non-blank line of stderr, falling back to err
// when the tool printed nothing or could not be started.
func firstLine(stderr []byte, err error) string {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return execErr.Error()
	}
	for _, line := range strings.Split(string(stderr), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return strings.TrimPrefix(line, "Error: ")
		}
	}
	return err.Error()
}
