package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/reposyncd/internal/observability"
)

var (
	eventsLimit int
	eventsType  string
	eventsLevel string
	eventsSince string
	eventsJSON  bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded engine events",
	Long: `Read the append-only event log and print matching events, oldest first.

Events cover engine starts and stops, project changes, completed and failed
sync cycles, push retries, and detected merge conflicts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if EventLog == nil {
			return fmt.Errorf("event log not initialized (observability may be disabled)")
		}

		filter := observability.EventFilter{
			Type:  eventsType,
			Level: eventsLevel,
		}
		if eventsSince != "" {
			since, err := parseSinceDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			filter.Since = &since
		}

		events, err := EventLog.Read(filter)
		if err != nil {
			return fmt.Errorf("reading event log: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No matching events.")
			return nil
		}

		if eventsLimit > 0 && len(events) > eventsLimit {
			events = events[len(events)-eventsLimit:]
		}

		if eventsJSON {
			data, err := json.MarshalIndent(events, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting events as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for _, event := range events {
			fmt.Printf("%s  %-5s %-24s %s\n",
				event.Time.Format("2006-01-02 15:04:05"), event.Level, event.Type, event.Message)
		}
		return nil
	},
}

func init() {
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "Maximum number of events to show (most recent)")
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "Only events of this type (e.g. sync.cycle_failed)")
	eventsCmd.Flags().StringVar(&eventsLevel, "level", "", "Only events at this level (INFO, WARN, ERROR)")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "Time window (e.g. 7d, 24h); default all")
	eventsCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(eventsCmd)
}
