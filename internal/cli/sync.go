package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/reposyncd/internal/core"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle against the active project",
	Long: `Run a single sync cycle: pull from the remote, stage everything, commit
with a generated message, and push. The cycle is recorded in a short-lived
audit session.

A merge conflict aborts the cycle and is reported together with any past
sessions that conflicted on the same files.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		outcome, err := Controller.SyncOnce(ctx)
		if err != nil {
			var conflict *core.ConflictError
			if errors.As(err, &conflict) {
				fmt.Printf("Merge conflict in %d file(s):\n", len(conflict.Files))
				for _, f := range conflict.Files {
					fmt.Printf("  %s\n", f)
				}
				if len(conflict.Prior) > 0 {
					fmt.Printf("\nThese files conflicted in %d earlier session(s):\n", len(conflict.Prior))
					for _, m := range conflict.Prior {
						fmt.Printf("  %s at %s\n", m.SessionID, m.Timestamp.Format("2006-01-02 15:04"))
					}
				}
				fmt.Println("\nResolve the conflict manually, then sync again.")
				return err
			}
			if errors.Is(err, core.ErrNoActiveProject) {
				return fmt.Errorf("no active project; set one with 'reposyncd project <path>'")
			}
			return fmt.Errorf("syncing repository: %w", err)
		}

		if !outcome.HasChanges {
			fmt.Println("Already up to date; nothing to commit.")
			return nil
		}

		fmt.Printf("Synced: %s\n", outcome.CommitMessage)
		if outcome.PushRetries > 0 {
			fmt.Printf("Push succeeded after %d retry attempt(s).\n", outcome.PushRetries)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
