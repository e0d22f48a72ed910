package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var initBranch string

var initCmd = &cobra.Command{
	Use:   "init <remote-url> [path]",
	Short: "Initialize a directory as a synchronized repository",
	Long: `Initialize a directory as a git repository wired to a remote.

The directory is initialized, the configured identity and credential helper
are applied, everything is committed as "Initial commit", and the branch is
pushed to the remote with upstream tracking. Path defaults to the current
directory. On success the directory becomes the active project.

Fails if the directory already contains a repository.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		remoteURL := args[0]
		dir := "."
		if len(args) == 2 {
			dir = args[1]
		}
		if dir == "." {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolving current directory: %w", err)
			}
			dir = cwd
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := Controller.InitRepository(ctx, dir, remoteURL, initBranch); err != nil {
			return fmt.Errorf("initializing repository: %w", err)
		}

		fmt.Printf("Initialized %s on branch %s, pushing to %s\n", dir, initBranch, remoteURL)
		fmt.Println("It is now the active project.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initBranch, "branch", "main", "Initial branch name")
	rootCmd.AddCommand(initCmd)
}
