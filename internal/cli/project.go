package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project [path]",
	Short: "Show or set the active project directory",
	Long: `Show the active project directory, or set it when a path is given.

The path must exist and contain a git repository. The new project is
persisted to .syncconfig so later invocations and the daemon pick it up.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		if len(args) == 0 {
			project := Controller.ProjectPath()
			if project == "" {
				fmt.Println("No active project.")
				return nil
			}
			fmt.Println(project)
			return nil
		}

		if err := Controller.SetProjectPath(args[0]); err != nil {
			return fmt.Errorf("setting project path: %w", err)
		}

		fmt.Printf("Active project set to %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
}
