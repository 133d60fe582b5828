//go:build !integration

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitebuild/sitebuild/pkg/orchestrator"
	"github.com/sitebuild/sitebuild/pkg/pipeline"
	"github.com/sitebuild/sitebuild/pkg/testutil"
)

type nopServer struct{}

func (nopServer) Addr() string { return "localhost:0" }

func (nopServer) Reload() {}

func (nopServer) Inject([]string) {}

func (nopServer) ListenAndServe(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

type cssRunner struct{}

func (cssRunner) Run(context.Context, pipeline.Command) ([]byte, []byte, error) {
	return []byte("a{}"), nil, nil
}

// execute runs the command tree with args inside a fresh project directory.
func execute(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	testutil.Chdir(t, root)

	var stdout, stderr bytes.Buffer
	app := NewApp()
	app.Stdout = &stdout
	app.Stderr = &stderr
	app.Runner = cssRunner{}
	app.Server = nopServer{}

	cmd := NewRootCommand(app, "1.2.3")
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestParseSteps(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no args", nil, "default"},
		{"sequence with group", []string{"clean", "html,js,css"}, "clean, (html, js, css)"},
		{"blank args skipped", []string{" ", "build"}, "build"},
		{"empty group members dropped", []string{"html,,js,"}, "(html, js)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			steps, err := ParseSteps(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, orchestrator.FormatSteps(steps))
		})
	}
}

func TestParseStepsRejectsEmptyGroup(t *testing.T) {
	for _, arg := range []string{",", " , ", ",,"} {
		_, err := ParseSteps([]string{"clean", arg})
		require.Error(t, err, "arg %q", arg)
		assert.Contains(t, err.Error(), "invalid step")
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{850 * time.Microsecond, "850 μs"},
		{12 * time.Millisecond, "12 ms"},
		{1250 * time.Millisecond, "1.25 s"},
		{125 * time.Second, "2m5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatElapsed(tt.in))
	}
}

func TestConsoleObserver(t *testing.T) {
	var buf bytes.Buffer
	obs := newConsoleObserver(&buf, false)

	obs.TaskStarted("run-1", "css")
	obs.TaskFinished("run-1", "css", 12*time.Millisecond, nil)
	obs.TaskStarted("run-1", "js")
	obs.TaskFinished("run-1", "js", 3*time.Millisecond, errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Starting 'css'...")
	assert.Contains(t, out, "Finished 'css' after 12 ms")
	assert.Contains(t, out, "'js' errored after 3 ms")
	assert.NotContains(t, out, "run-1", "run ids are only shown in verbose mode")
}

func TestListJSON(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	stdout, _, err := execute(t, root, "list", "--json")
	require.NoError(t, err)

	var infos []orchestrator.TaskInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))
	require.NotEmpty(t, infos)

	byName := make(map[string]orchestrator.TaskInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.Equal(t, "clean, (html, js, css, img)", byName["build"].Prerequisites)
	assert.Equal(t, []string{"src/scss/**/*.scss"}, byName["sass"].Watch)
}

func TestListTable(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	stdout, _, err := execute(t, root, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Task")
	assert.Contains(t, stdout, "serve")
}

func TestRootRunsNamedTask(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	testutil.WriteFile(t, root, "src/js/app.js", "var app = 1;\n")
	testutil.WriteFile(t, root, "sitebuild.yml", "prefix:\n  enabled: false\n")

	_, stderr, err := execute(t, root, "js")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "dist/js/script.js"))
	assert.Contains(t, stderr, "Starting 'js'...")
	assert.Contains(t, stderr, "Finished 'js'")
}

func TestRunWithDirFlag(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	project := filepath.Join(root, "site")
	testutil.WriteFile(t, project, "src/css/a.css", "a { color: red; }")

	_, _, err := execute(t, root, "run", "-C", project, "clean", "css")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(project, "dist/css/style.css"))
}

func TestRunUnknownTask(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	_, stderr, err := execute(t, root, "run", "deploy")
	require.ErrorIs(t, err, orchestrator.ErrUnknownTask)
	assert.NotContains(t, stderr, "Starting", "nothing runs when validation fails")
}

func TestRunRejectsEmptyGroup(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	_, stderr, err := execute(t, root, "run", "clean", ",")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid step")
	assert.NotContains(t, stderr, "Starting", "nothing runs when an argument names no task")
}

func TestExplicitConfigMustExist(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	_, _, err := execute(t, root, "--config", "custom.yml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read configuration")
}

func TestInvalidConfigIsReported(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	testutil.WriteFile(t, root, "sitebuild.yml", "unknown_section: true\n")

	_, _, err := execute(t, root, "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCleanCommand(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	testutil.WriteFile(t, root, "dist/index.html", "x")
	testutil.WriteFile(t, root, "tmp/cache.txt", "x")

	_, stderr, err := execute(t, root, "clean")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "dist"))
	assert.DirExists(t, filepath.Join(root, "tmp"))
	assert.Contains(t, stderr, "Cleaned dist/")

	_, _, err = execute(t, root, "clean", "tmp")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(root, "tmp"))
}

func TestCleanRefusesWorkingDirectory(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	_, _, err := execute(t, root, "clean", ".")
	require.ErrorIs(t, err, orchestrator.ErrUnsafeClean)
	assert.DirExists(t, root)
}

func TestSchemaCommand(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	stdout, _, err := execute(t, root, "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Contains(t, doc, "properties")
}

func TestVersionCommand(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")

	stdout, _, err := execute(t, root, "version")
	require.NoError(t, err)
	assert.Equal(t, "sitebuild version 1.2.3\n", stdout)
}

func TestWatchCommandStopsWithContext(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	testutil.WriteFile(t, root, "src/js/app.js", "var app = 1;\n")
	testutil.Chdir(t, root)

	var stderr bytes.Buffer
	app := NewApp()
	app.Stderr = &stderr
	app.Server = nopServer{}
	session, err := app.Load(nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	require.NoError(t, RunWatch(ctx, app, session, []string{"js"}))
	assert.Contains(t, stderr.String(), "Watching js")
}

func TestWatchCommandRejectsUnwatchableTask(t *testing.T) {
	root := testutil.TempDir(t, "cli-*")
	testutil.Chdir(t, root)

	app := NewApp()
	app.Stderr = &bytes.Buffer{}
	app.Server = nopServer{}
	session, err := app.Load(nil)
	require.NoError(t, err)

	err = RunWatch(context.Background(), app, session, []string{"build"})
	require.ErrorIs(t, err, orchestrator.ErrNothingToWatch)
}
