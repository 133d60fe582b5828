package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sitebuild/sitebuild/pkg/console"
)

// consoleObserver prints a line when each task starts and finishes.
type consoleObserver struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
}

func newConsoleObserver(w io.Writer, verbose bool) *consoleObserver {
	return &consoleObserver{w: w, verbose: verbose}
}

func (c *consoleObserver) TaskStarted(runID, task string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.verbose {
		fmt.Fprintln(c.w, console.FormatVerboseMessage(fmt.Sprintf("Run %s", runID)))
	}
	fmt.Fprintln(c.w, console.FormatProgressMessage(fmt.Sprintf("Starting '%s'...", task)))
}

func (c *consoleObserver) TaskFinished(_, task string, elapsed time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		fmt.Fprintln(c.w, console.FormatErrorMessage(fmt.Sprintf("'%s' errored after %s", task, formatElapsed(elapsed))))
		return
	}
	fmt.Fprintln(c.w, console.FormatSuccessMessage(fmt.Sprintf("Finished '%s' after %s", task, formatElapsed(elapsed))))
}

// formatElapsed renders durations the way build logs usually do:
// "850 μs", "12 ms", "1.25 s", "2m5s".
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
