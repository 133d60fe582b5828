//go:build !integration

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebuild/sitebuild/pkg/orchestrator"
	"github.com/sitebuild/sitebuild/pkg/testutil"
)

// fakeRunner records commands and answers them from respond.
type fakeRunner struct {
	mu       sync.Mutex
	commands []Command
	respond  func(Command) ([]byte, []byte, error)
}

func (r *fakeRunner) Run(_ context.Context, c Command) ([]byte, []byte, error) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	r.mu.Unlock()
	return r.respond(c)
}

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestSrcOrdersByPatternThenName(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "js/b.js", "b")
	testutil.WriteFile(t, root, "js/a.js", "a")
	testutil.WriteFile(t, root, "js/vendor/c.js", "c")
	testutil.WriteFile(t, root, "lib/first.js", "first")

	files, err := Src(filepath.Join(root, "lib/*.js"), filepath.Join(root, "js/**/*.js"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first.js", "a.js", "b.js", "vendor/c.js"}, paths(files))
	assert.Equal(t, filepath.Join(root, "js"), files[1].Base)
	assert.Equal(t, []byte("a"), files[1].Contents)
	assert.False(t, files[1].ModTime.IsZero())
}

func TestSrcReadsEachFileOnce(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "css/a.css", "a")

	files, err := Src(filepath.Join(root, "css/*.css"), filepath.Join(root, "css/**/*.css"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSrcBraceSetsAndMissingBase(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "img/logo.png", "png")
	testutil.WriteFile(t, root, "img/icon.svg", "svg")
	testutil.WriteFile(t, root, "img/notes.txt", "txt")

	files, err := Src(filepath.Join(root, "img/**/*.{png,svg}"), filepath.Join(root, "missing/*.png"))
	require.NoError(t, err)
	assert.Equal(t, []string{"icon.svg", "logo.png"}, paths(files))
}

func TestSrcRejectsBadPattern(t *testing.T) {
	_, err := Src("src/[a-")
	require.Error(t, err)

	var fsErr *orchestrator.FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "glob", fsErr.Op)
}

func TestPipelineConcatenatesInOrder(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "src/js/b.js", "var b = 2;")
	testutil.WriteFile(t, root, "src/js/a.js", "var a = 1;")
	out := filepath.Join(root, "dist/js")

	p := Pipeline{
		Name:   "js",
		Src:    []string{filepath.Join(root, "src/js/**/*.js")},
		Stages: []Stage{Concat("script.js")},
		Dest:   out,
	}
	require.NoError(t, p.Run(context.Background()))

	got, err := os.ReadFile(filepath.Join(out, "script.js"))
	require.NoError(t, err)
	assert.Equal(t, "var a = 1;\nvar b = 2;", string(got))
}

func TestPipelineWithoutSourcesSkipsStages(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	called := false

	p := Pipeline{
		Name:   "empty",
		Src:    []string{filepath.Join(root, "*.css")},
		Stages: []Stage{Tap(func([]File) { called = true })},
		Dest:   filepath.Join(root, "dist"),
	}
	require.NoError(t, p.Run(context.Background()))
	assert.False(t, called)
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestPipelineStopsAtFailingStage(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "src/a.css", "a{}")
	boom := &orchestrator.TransformationError{Stage: "boom", Message: "bad"}

	p := Pipeline{
		Name: "css",
		Src:  []string{filepath.Join(root, "src/*.css")},
		Stages: []Stage{StageFunc{StageName: "boom", Fn: func(context.Context, []File) ([]File, error) {
			return nil, boom
		}}},
		Dest: filepath.Join(root, "dist"),
	}
	err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.NoDirExists(t, filepath.Join(root, "dist"))
}

func TestPipelineReportsWriteFailure(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "src/a.css", "a{}")
	// A regular file where the output directory should be.
	blocker := testutil.WriteFile(t, root, "dist", "")

	p := Pipeline{Name: "css", Src: []string{filepath.Join(root, "src/*.css")}, Dest: filepath.Join(blocker, "css")}
	err := p.Run(context.Background())

	var fsErr *orchestrator.FilesystemError
	require.ErrorAs(t, err, &fsErr)
	assert.Equal(t, "create directory", fsErr.Op)
}

func TestDestStageRebasesFilesForTap(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	testutil.WriteFile(t, root, "src/scss/main.scss", "x")
	out := filepath.Join(root, "src/css")
	var tapped []string

	p := Pipeline{
		Name: "sass",
		Src:  []string{filepath.Join(root, "src/scss/*.scss")},
		Stages: []Stage{
			Rename(".css"),
			DestStage(out),
			Tap(func(files []File) {
				for _, f := range files {
					tapped = append(tapped, f.FullPath())
				}
			}),
		},
	}
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, []string{filepath.Join(out, "main.css")}, tapped)
	assert.FileExists(t, filepath.Join(out, "main.css"))
}

func TestRename(t *testing.T) {
	files, err := Rename(".css").Process(context.Background(), []File{{Path: "nested/main.scss"}, {Path: "noext"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"nested/main.css", "noext.css"}, paths(files))
}

func TestChangedSkipsUpToDateFiles(t *testing.T) {
	root := testutil.TempDir(t, "pipeline-*")
	out := filepath.Join(root, "dist")
	testutil.WriteFile(t, out, "fresh.png", "old output")
	testutil.WriteFile(t, out, "stale.png", "old output")

	now := time.Now()
	require.NoError(t, os.Chtimes(filepath.Join(out, "stale.png"), now.Add(-time.Hour), now.Add(-time.Hour)))

	files := []File{
		{Path: "fresh.png", ModTime: now.Add(-time.Minute)},
		{Path: "stale.png", ModTime: now.Add(-time.Minute)},
		{Path: "new.png", ModTime: now},
	}
	got, err := Changed(out).Process(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.png", "new.png"}, paths(got))
}

func TestSassCompilesEntryFiles(t *testing.T) {
	runner := &fakeRunner{respond: func(c Command) ([]byte, []byte, error) {
		return []byte("body{color:red}"), nil, nil
	}}
	stage := Sass(SassOptions{Command: []string{"sass", "--quiet"}, SourceMaps: true, Runner: runner})

	files, err := stage.Process(context.Background(), []File{
		{Base: "src/scss", Path: "_vars.scss"},
		{Base: "src/scss", Path: "main.scss"},
	})
	require.NoError(t, err)

	require.Len(t, files, 1, "partials should not be compiled on their own")
	assert.Equal(t, "main.scss", files[0].Path)
	assert.Equal(t, "body{color:red}", string(files[0].Contents))

	require.Len(t, runner.commands, 1)
	cmd := runner.commands[0]
	assert.Equal(t, "sass", cmd.Name)
	assert.Equal(t, "--quiet", cmd.Args[0])
	assert.Contains(t, cmd.Args, "--embed-source-map")
	assert.Contains(t, cmd.Args, "--load-path="+filepath.Join("src", "scss"))
	assert.Equal(t, filepath.Join("src", "scss", "main.scss"), cmd.Args[len(cmd.Args)-1])
}

func TestSassReportsLocation(t *testing.T) {
	stderr := strings.Join([]string{
		`Error: expected ";".`,
		`  ╷`,
		`3 │   color: red`,
		`  │             ^`,
		`  ╵`,
		`  src/scss/main.scss 3:13  root stylesheet`,
	}, "\n")
	runner := &fakeRunner{respond: func(Command) ([]byte, []byte, error) {
		return nil, []byte(stderr), assert.AnError
	}}

	_, err := Sass(SassOptions{Runner: runner}).Process(context.Background(), []File{{Base: "src/scss", Path: "main.scss"}})

	var tErr *orchestrator.TransformationError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "sass", tErr.Stage)
	assert.Equal(t, "src/scss/main.scss", tErr.File)
	assert.Equal(t, 3, tErr.Line)
	assert.Equal(t, 13, tErr.Column)
	assert.Equal(t, `expected ";".`, tErr.Message)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestPrefixPassesBrowserQuery(t *testing.T) {
	runner := &fakeRunner{respond: func(c Command) ([]byte, []byte, error) {
		return append([]byte("/* prefixed */"), c.Stdin...), nil, nil
	}}
	stage := Prefix(PrefixOptions{Enabled: true, Command: []string{"postcss", "--use", "autoprefixer"}, Runner: runner})

	files, err := stage.Process(context.Background(), []File{{Path: "main.css", Contents: []byte("a{}")}})
	require.NoError(t, err)
	assert.Equal(t, "/* prefixed */a{}", string(files[0].Contents))

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"BROWSERSLIST=last 2 versions"}, runner.commands[0].Env)
	assert.Equal(t, []string{"--use", "autoprefixer"}, runner.commands[0].Args)
}

func TestPrefixDisabledPassesThrough(t *testing.T) {
	runner := &fakeRunner{respond: func(Command) ([]byte, []byte, error) {
		t.Fatal("disabled prefix stage should not run a command")
		return nil, nil, nil
	}}
	in := []File{{Path: "main.css", Contents: []byte("a{}")}}

	files, err := Prefix(PrefixOptions{Command: []string{"postcss"}, Runner: runner}).Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, files)
}

func TestPrefixReportsLocation(t *testing.T) {
	runner := &fakeRunner{respond: func(Command) ([]byte, []byte, error) {
		return nil, []byte("CssSyntaxError: <css input>:4:2: Unknown word\n"), assert.AnError
	}}

	_, err := Prefix(PrefixOptions{Enabled: true, Command: []string{"postcss"}, Runner: runner}).
		Process(context.Background(), []File{{Base: "src/css", Path: "main.css"}})

	var tErr *orchestrator.TransformationError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, 4, tErr.Line)
	assert.Equal(t, 2, tErr.Column)
	assert.Equal(t, "Unknown word", tErr.Message)
}
