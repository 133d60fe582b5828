package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/constants"
)

// NewRootCommand assembles the command tree. Running the root command with
// task names behaves like run.
func NewRootCommand(app *App, version string) *cobra.Command {
	root := &cobra.Command{
		Use:   constants.CLIName + " [task...]",
		Short: "Build, watch and serve a static site",
		Long: `Build, watch and serve a static site.

Tasks compile Sass, bundle and minify stylesheets and scripts, optimize
images and rewrite markup into dist/. The default task serves src/ with live
reload and rebuilds on change.

Examples:
  ` + constants.CLIName + `                  # Serve with live reload
  ` + constants.CLIName + ` build            # Produce dist/
  ` + constants.CLIName + ` list             # Show every task`,
		Args:              cobra.ArbitraryArgs,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		ValidArgsFunction: completeTaskNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return RunTasks(cmd.Context(), session, args)
		},
	}
	app.AddFlags(root)

	root.AddCommand(
		NewRunCommand(app),
		NewListCommand(app),
		NewCleanCommand(app),
		NewWatchCommand(app),
		NewSchemaCommand(app),
		NewCompletionCommand(app),
		newVersionCommand(app, version),
	)
	return root
}

func newVersionCommand(app *App, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(app.stdout(), "%s version %s\n", constants.CLIName, version)
		},
	}
}
