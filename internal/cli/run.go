package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync engine as a foreground daemon",
	Long: `Start the sync engine and keep it running until interrupted.

On startup the engine opens an audit session, runs one immediate sync cycle
against the active project, and then syncs again on every timer tick. SIGINT
or SIGTERM stops the timer, closes the session, and exits cleanly.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := Controller.Start(ctx); err != nil {
			return fmt.Errorf("starting sync engine: %w", err)
		}

		if project := Controller.ProjectPath(); project != "" {
			fmt.Printf("Syncing %s every %s (session %s)\n", project, Config.SyncInterval, Controller.SessionID())
		} else {
			fmt.Println("No active project; waiting. Set one with 'reposyncd project <path>'.")
		}

		<-ctx.Done()

		if err := Controller.Stop(); err != nil {
			return fmt.Errorf("stopping sync engine: %w", err)
		}

		fmt.Println("Sync engine stopped.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
