package pipeline

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/sitebuild/sitebuild/pkg/logger"
)

var commandLog = logger.New("pipeline:command")

// Command describes one invocation of an external tool.
type Command struct {
	Name  string
	Args  []string
	Stdin []byte
	// Env is appended to the current process environment.
	Env []string
}

// CommandRunner runs external tools for the stages that delegate to them.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) ([]byte, []byte, error) {
	commandLog.Printf("Running %s %v", c.Name, c.Args)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		commandLog.Printf("%s failed: %v", c.Name, err)
	}
	return stdout.Bytes(), stderr.Bytes(), err
}

func runnerOrDefault(r CommandRunner) CommandRunner {
	if r == nil {
		return ExecRunner{}
	}
	return r
}
