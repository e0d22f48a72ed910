package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sync sessions and their actions",
	Long: `List sessions from the audit log, newest first, with every recorded
action: syncs, project changes, repository initializations, and merge
conflicts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AuditLog == nil {
			return fmt.Errorf("audit log not initialized")
		}

		sessions := AuditLog.Sessions()
		if len(sessions) == 0 {
			fmt.Println("No recorded sessions.")
			return nil
		}

		// Newest first.
		limit := historyLimit
		if limit <= 0 || limit > len(sessions) {
			limit = len(sessions)
		}
		shown := sessions[len(sessions)-limit:]

		if historyJSON {
			data, err := json.MarshalIndent(shown, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting history as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for i := len(shown) - 1; i >= 0; i-- {
			session := shown[i]
			end := "open"
			if session.EndTime != nil {
				end = session.EndTime.Format("15:04")
			}
			fmt.Printf("\n== %s (%s, %s - %s) ==\n",
				session.ID, session.Status, session.StartTime.Format("2006-01-02 15:04"), end)

			if len(session.Actions) == 0 {
				fmt.Println("  (no actions)")
				continue
			}
			for _, action := range session.Actions {
				marker := "ok"
				if !action.Result.Success {
					marker = "FAILED"
				}
				detail := ""
				switch {
				case action.Result.CommitMessage != "":
					detail = action.Result.CommitMessage
				case len(action.Result.ConflictedFiles) > 0:
					detail = strings.Join(action.Result.ConflictedFiles, ", ")
				case action.Result.Error != "":
					detail = action.Result.Error
				}
				fmt.Printf("  %s  %-20s %-7s %s\n",
					action.Timestamp.Format("15:04:05"), action.Type, marker, detail)
			}
		}
		return nil
	},
}

var historyConflictsCmd = &cobra.Command{
	Use:   "conflicts <file>...",
	Short: "Find past merge conflicts touching the given files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if AuditLog == nil {
			return fmt.Errorf("audit log not initialized")
		}

		matches, err := AuditLog.FindConflictsTouching(args)
		if err != nil {
			return fmt.Errorf("looking up conflicts: %w", err)
		}
		if len(matches) == 0 {
			fmt.Println("No past conflicts touch those files.")
			return nil
		}

		fmt.Printf("%d past conflict(s):\n", len(matches))
		for _, m := range matches {
			fmt.Printf("  %s at %s: %s\n",
				m.SessionID, m.Timestamp.Format("2006-01-02 15:04"), strings.Join(m.Files, ", "))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Maximum number of sessions to show")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
	historyCmd.AddCommand(historyConflictsCmd)
	rootCmd.AddCommand(historyCmd)
}
