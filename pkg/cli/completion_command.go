package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitebuild/sitebuild/pkg/constants"
	"github.com/sitebuild/sitebuild/pkg/logger"
)

var completionLog = logger.New("cli:completion")

// NewCompletionCommand creates the completion command.
func NewCompletionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a shell completion script. Task names are completed from the
configuration of the current directory.

Supported shells: bash, zsh, fish, powershell

Examples:
  # Bash
  ` + constants.CLIName + ` completion bash > ~/.bash_completion.d/` + constants.CLIName + `

  # Zsh
  ` + constants.CLIName + ` completion zsh > "${fpath[1]}/_` + constants.CLIName + `"

  # Fish
  ` + constants.CLIName + ` completion fish > ~/.config/fish/completions/` + constants.CLIName + `.fish

  # PowerShell
  ` + constants.CLIName + ` completion powershell | Out-String | Invoke-Expression`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := args[0]
			completionLog.Printf("Generating %s completion script", shell)

			out := app.stdout()
			switch shell {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", shell)
			}
		},
	}
}
