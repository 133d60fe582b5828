package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
	"github.com/sitebuild/sitebuild/pkg/orchestrator"
)

var runLog = logger.New("cli:run")

// NewRunCommand creates the run command.
func NewRunCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "run [task...]",
		Short: "Run one or more tasks in order",
		Long: `Run tasks in the order given. Each argument is a step: a single task name,
or several comma-separated names that run in parallel.

Without arguments the '` + constants.DefaultTask + `' task runs.

Examples:
  ` + constants.CLIName + ` run build                 # Clean and build the site
  ` + constants.CLIName + ` run clean html,js,css     # Clean, then three tasks in parallel
  ` + constants.CLIName + ` run                       # Same as '` + constants.CLIName + ` ` + constants.DefaultTask + `'`,
		ValidArgsFunction: completeTaskNames(app),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return RunTasks(cmd.Context(), session, args)
		},
	}
}

// RunTasks parses args into steps and runs them.
func RunTasks(ctx context.Context, session *Session, args []string) error {
	steps, err := ParseSteps(args)
	if err != nil {
		return err
	}
	runLog.Printf("Running [%s]", orchestrator.FormatSteps(steps))
	return session.Orchestrator.Run(ctx, steps...)
}

// ParseSteps turns command-line arguments into steps. No arguments selects
// the default task. Blank arguments are ignored, but an argument made only
// of commas names no task and is rejected.
func ParseSteps(args []string) ([]orchestrator.Step, error) {
	var steps []orchestrator.Step
	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		step := orchestrator.ParseStep(arg)
		if len(step.Names()) == 0 {
			return nil, fmt.Errorf("invalid step %q: expected a task name or comma-separated task names", arg)
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		steps = append(steps, orchestrator.One(constants.DefaultTask))
	}
	return steps, nil
}

// completeTaskNames completes registered task names, loading the
// configuration of the current directory.
func completeTaskNames(app *App) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		session, err := app.Load(cmd)
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var names []string
		for _, info := range session.Orchestrator.Tasks() {
			if strings.HasPrefix(info.Name, toComplete) {
				names = append(names, info.Name+"\t"+info.Description)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
