package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sitebuild/sitebuild/pkg/console"
)

var (
	// ErrUnknownTask matches any *UnknownTaskError via errors.Is.
	ErrUnknownTask = errors.New("unknown task")
	// ErrCyclicDependency matches any *CyclicDependencyError via errors.Is.
	ErrCyclicDependency = errors.New("cyclic dependency")
)

// UnknownTaskError reports a task name that is not registered.
type UnknownTaskError struct {
	Name string
	// ReferencedBy is the task whose prerequisites name Name; empty when Name
	// was a run target.
	ReferencedBy string
}

func (e *UnknownTaskError) Error() string {
	if e.ReferencedBy != "" {
		return fmt.Sprintf("task %q is not defined (prerequisite of %q)", e.Name, e.ReferencedBy)
	}
	return fmt.Sprintf("task %q is not defined", e.Name)
}

func (e *UnknownTaskError) Unwrap() error { return ErrUnknownTask }

// CyclicDependencyError reports a prerequisite cycle. Path starts and ends
// with the same task name.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "cyclic dependency: " + strings.Join(e.Path, " -> ")
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// FilesystemError reports an I/O failure while reading, writing or deleting.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error { return e.Err }

// NewFilesystemError returns nil when err is nil.
func NewFilesystemError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &FilesystemError{Op: op, Path: path, Err: err}
}

// TransformationError reports malformed input rejected by a pipeline stage.
// Line and Column are 1-based and zero when the stage gave no location.
type TransformationError struct {
	Stage   string
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *TransformationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	b.WriteString(": ")
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func (e *TransformationError) Unwrap() error { return e.Err }

// CompilerError converts e for console.FormatError.
func (e *TransformationError) CompilerError() console.CompilerError {
	return console.CompilerError{
		Position: console.ErrorPosition{File: e.File, Line: e.Line, Column: e.Column},
		Type:     "error",
		Message:  e.Stage + ": " + e.Message,
	}
}

// TaskError names the task whose action failed.
type TaskError struct {
	Task string
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// FailedTask returns the name of the innermost task that failed in err, or ""
// when err carries no TaskError.
func FailedTask(err error) string {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Task
	}
	return ""
}

// FormatError renders err for the console. Transformation errors are shown
// with their source location.
func FormatError(err error) string {
	var tErr *TransformationError
	if errors.As(err, &tErr) && tErr.File != "" {
		prefix := ""
		if task := FailedTask(err); task != "" {
			prefix = console.FormatErrorMessage(fmt.Sprintf("Task '%s' failed", task)) + "\n"
		}
		return prefix + console.FormatError(tErr.CompilerError())
	}
	return console.FormatErrorMessage(err.Error())
}
