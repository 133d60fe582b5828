package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/console"
	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var listLog = logger.New("cli:list")

// NewListCommand creates the list command.
func NewListCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered tasks",
		Long: `List every registered task with its prerequisites, watched globs and description.

Examples:
  ` + constants.CLIName + ` list           # Show a table
  ` + constants.CLIName + ` list --json    # Output in JSON format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonFlag, _ := cmd.Flags().GetBool("json")
			session, err := app.Load(cmd)
			if err != nil {
				return err
			}
			return RunList(app, session, jsonFlag)
		},
	}
	addJSONFlag(cmd)
	return cmd
}

// RunList prints the registered tasks.
func RunList(app *App, session *Session, jsonOutput bool) error {
	infos := session.Orchestrator.Tasks()
	listLog.Printf("Listing %d tasks (json=%v)", len(infos), jsonOutput)

	if jsonOutput {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode task list: %w", err)
		}
		fmt.Fprintln(app.stdout(), string(data))
		return nil
	}

	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{info.Name, info.Prerequisites, strings.Join(info.Watch, ", "), info.Description})
	}
	fmt.Fprint(app.stdout(), console.RenderTable(console.TableConfig{
		Headers: []string{"Task", "Prerequisites", "Watch", "Description"},
		Rows:    rows,
	}))
	return nil
}

func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("json", "j", false, "Output results in JSON format")
}
