package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/console"
	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path...]",
		Short: "Delete build outputs",
		Long: `Delete the given files or directories, or the configured distribution
directory when none are given. Missing paths are ignored. The working
directory and its parents are never deleted.

Examples:
  ` + constants.CLIName + ` clean               # Delete dist/
  ` + constants.CLIName + ` clean src/css/main.css`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return RunClean(app, session, args)
		},
	}
}

// RunClean deletes targets, defaulting to the distribution directory.
func RunClean(app *App, session *Session, targets []string) error {
	if len(targets) == 0 {
		targets = []string{session.Config.Paths.Dist}
	}
	if err := orchestrator.Clean(targets...); err != nil {
		return err
	}
	fmt.Fprintln(app.stderr(), console.FormatSuccessMessage("Cleaned "+strings.Join(targets, ", ")))
	return nil
}
