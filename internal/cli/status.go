package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine state and the most recent session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Controller == nil {
			return fmt.Errorf("lifecycle controller not initialized")
		}

		fmt.Printf("%-16s %s\n", "Agent:", Config.AgentID)
		if Controller.Running() {
			fmt.Printf("%-16s running (session %s)\n", "Engine:", Controller.SessionID())
		} else {
			fmt.Printf("%-16s stopped\n", "Engine:")
		}
		if project := Controller.ProjectPath(); project != "" {
			fmt.Printf("%-16s %s\n", "Project:", project)
		} else {
			fmt.Printf("%-16s (none)\n", "Project:")
		}
		fmt.Printf("%-16s %s\n", "Interval:", Config.SyncInterval)

		if AuditLog == nil {
			return nil
		}
		sessions := AuditLog.Sessions()
		if len(sessions) == 0 {
			fmt.Println("\nNo recorded sessions yet.")
			return nil
		}

		last := sessions[len(sessions)-1]
		fmt.Printf("\nLast session %s (%s, started %s)\n",
			last.ID, last.Status, last.StartTime.Format("2006-01-02 15:04"))
		for _, action := range last.Actions {
			marker := "ok"
			if !action.Result.Success {
				marker = "FAILED"
			}
			fmt.Printf("  %-20s %s\n", action.Type, marker)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
