package cli

import (
	"github.com/spf13/cobra"
)

// rootCmd is a root of all commands.
var rootCmd = &cobra.Command{
	Use:   "pithos [command] [flags]",
	Short: "pithos command-line interface",
	Long:  `pithos command-line interface`,
	Run:   rootCmdRun,
}

func rootCmdRun(cmd *cobra.Command, args []string) {
	cmd.Help()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add commands.
	rootCmd.AddCommand(gwCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(checkCmd)
}
