package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/config"
	"github.com/sitebuild/sitebuild/pkg/constants"
)

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the configuration file",
		Long: `Print the JSON schema that ` + constants.DefaultConfigFile + ` is validated against.
Editors with YAML language support can use it for completion.

Examples:
  ` + constants.CLIName + ` schema > sitebuild.schema.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.Schema()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout(), string(schema))
			return nil
		},
	}
}
