package observability

import (
	"fmt"
	"time"
)

// Metrics holds calculated metrics derived from the event log.
type Metrics struct {
	CyclesCompleted int        `json:"cycles_completed"`
	CyclesFailed    int        `json:"cycles_failed"`
	Conflicts       int        `json:"conflicts"`
	FilesChanged    int        `json:"files_changed"`
	PushRetries     int        `json:"push_retries"`
	EngineStarts    int        `json:"engine_starts"`
	EventCount      int        `json:"event_count"`
	OldestEvent     *time.Time `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

// metricsCalculator implements MetricsCalculator by reading from an EventLog.
type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from the given EventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate reads all events since the given time and aggregates them.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{}
	m.EventCount = len(events)

	for i, event := range events {
		if i == 0 {
			t := event.Time
			m.OldestEvent = &t
		}
		t := event.Time
		m.NewestEvent = &t

		switch event.Type {
		case EventCycleCompleted:
			m.CyclesCompleted++
			if n, ok := event.Data["files_changed"].(float64); ok {
				m.FilesChanged += int(n)
			}
		case EventCycleFailed:
			m.CyclesFailed++
		case EventConflictDetected:
			m.Conflicts++
		case EventPushRetried:
			m.PushRetries++
		case EventEngineStarted:
			m.EngineStarts++
		}
	}

	return m, nil
}
