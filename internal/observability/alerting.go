package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts should fire.
type AlertThresholds struct {
	ConflictRepeats     int `yaml:"conflict_repeats" json:"conflict_repeats"`
	ConsecutiveFailures int `yaml:"consecutive_failures" json:"consecutive_failures"`
	StaleSyncHours      int `yaml:"stale_sync_hours" json:"stale_sync_hours"`
}

// DefaultAlertThresholds returns sensible defaults for alert thresholds.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ConflictRepeats:     3,
		ConsecutiveFailures: 3,
		StaleSyncHours:      24,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

// alertEngine implements AlertEngine by reading events and checking thresholds.
type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
}

// NewAlertEngine creates a new AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
	}
}

// Evaluate reads events and checks all alert conditions, returning any
// triggered alerts.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	now := time.Now().UTC()
	var alerts []Alert

	conflictAlerts, err := ae.checkRecurringConflicts(now)
	if err != nil {
		return nil, fmt.Errorf("checking recurring conflicts: %w", err)
	}
	alerts = append(alerts, conflictAlerts...)

	failureAlerts, err := ae.checkConsecutiveFailures(now)
	if err != nil {
		return nil, fmt.Errorf("checking consecutive failures: %w", err)
	}
	alerts = append(alerts, failureAlerts...)

	staleAlerts, err := ae.checkStaleSync(now)
	if err != nil {
		return nil, fmt.Errorf("checking stale sync: %w", err)
	}
	alerts = append(alerts, staleAlerts...)

	return alerts, nil
}

// checkRecurringConflicts looks for files that have conflicted at least the
// threshold number of times across all recorded conflict events.
func (ae *alertEngine) checkRecurringConflicts(now time.Time) ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{Type: EventConflictDetected})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, event := range events {
		files, _ := event.Data["files"].([]any)
		for _, f := range files {
			if name, ok := f.(string); ok {
				counts[name]++
			}
		}
	}

	var recurring []string
	for file, count := range counts {
		if count >= ae.thresholds.ConflictRepeats {
			recurring = append(recurring, file)
		}
	}
	sort.Strings(recurring)

	var alerts []Alert
	for _, file := range recurring {
		alerts = append(alerts, Alert{
			ID:          fmt.Sprintf("conflict-%s", file),
			Condition:   "recurring_conflict",
			Severity:    SeverityHigh,
			Message:     fmt.Sprintf("file %s has conflicted %d or more times", file, ae.thresholds.ConflictRepeats),
			TriggeredAt: now,
		})
	}
	return alerts, nil
}

// checkConsecutiveFailures alerts when the most recent cycles all failed.
func (ae *alertEngine) checkConsecutiveFailures(now time.Time) ([]Alert, error) {
	completed, err := ae.eventLog.Read(EventFilter{Type: EventCycleCompleted})
	if err != nil {
		return nil, err
	}
	failed, err := ae.eventLog.Read(EventFilter{Type: EventCycleFailed})
	if err != nil {
		return nil, err
	}

	// Merge the two streams chronologically; JSONL append order is already
	// chronological per stream.
	events := append(append([]Event{}, completed...), failed...)
	sort.Slice(events, func(i, j int) bool { return events[i].Time.Before(events[j].Time) })

	streak := 0
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type != EventCycleFailed {
			break
		}
		streak++
	}

	if streak < ae.thresholds.ConsecutiveFailures {
		return nil, nil
	}
	return []Alert{{
		ID:          "consecutive-failures",
		Condition:   "consecutive_cycle_failures",
		Severity:    SeverityHigh,
		Message:     fmt.Sprintf("the last %d sync cycles all failed", streak),
		TriggeredAt: now,
	}}, nil
}

// checkStaleSync alerts when no cycle has completed successfully within the
// staleness window despite the engine having been started.
func (ae *alertEngine) checkStaleSync(now time.Time) ([]Alert, error) {
	started, err := ae.eventLog.Read(EventFilter{Type: EventEngineStarted})
	if err != nil {
		return nil, err
	}
	if len(started) == 0 {
		return nil, nil
	}

	completed, err := ae.eventLog.Read(EventFilter{Type: EventCycleCompleted})
	if err != nil {
		return nil, err
	}

	last := started[len(started)-1].Time
	if len(completed) > 0 {
		lastCompleted := completed[len(completed)-1].Time
		if lastCompleted.After(last) {
			last = lastCompleted
		}
	}

	threshold := time.Duration(ae.thresholds.StaleSyncHours) * time.Hour
	if now.Sub(last) <= threshold {
		return nil, nil
	}
	return []Alert{{
		ID:          "stale-sync",
		Condition:   "stale_sync",
		Severity:    SeverityMedium,
		Message:     fmt.Sprintf("no successful sync cycle in more than %d hours", ae.thresholds.StaleSyncHours),
		TriggeredAt: now,
	}}, nil
}
