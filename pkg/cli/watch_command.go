package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/console"
	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

var watchLog = logger.New("cli:watch")

// NewWatchCommand creates the watch command.
func NewWatchCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [task...]",
		Short: "Rerun tasks when their sources change",
		Long: `Watch the source globs of each task and rerun the task when files change.
Without arguments every task with source globs is watched. Failed runs are
reported and watching continues until interrupted.

Examples:
  ` + constants.CLIName + ` watch              # Watch every task
  ` + constants.CLIName + ` watch css js       # Watch stylesheets and scripts only`,
		ValidArgsFunction: completeTaskNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return RunWatch(cmd.Context(), app, session, args)
		},
	}
}

// RunWatch watches the named tasks, or every watchable task, until ctx ends.
func RunWatch(ctx context.Context, app *App, session *Session, names []string) error {
	o := session.Orchestrator
	if len(names) == 0 {
		names = o.WatchedTasks()
	}
	watchLog.Printf("Watching tasks %v", names)

	fmt.Fprintln(app.stderr(), console.FormatInfoMessage(
		fmt.Sprintf("Watching %s (press Ctrl+C to stop)", strings.Join(names, ", "))))

	return o.WatchTasks(ctx, names,
		orchestrator.OnChange(func(paths []string) {
			console.LogVerbose(app.Verbose, fmt.Sprintf("Changed: %s", strings.Join(paths, ", ")))
		}),
		orchestrator.OnRunError(func(err error) {
			fmt.Fprintln(app.stderr(), orchestrator.FormatError(err))
		}),
	)
}
