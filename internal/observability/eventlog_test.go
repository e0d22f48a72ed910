package observability

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("NewJSONLEventLog: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteReadRoundTrip(t *testing.T) {
	log, _ := newTestLog(t)

	now := time.Now().UTC().Truncate(time.Second)
	events := []Event{
		{Time: now.Add(-2 * time.Hour), Level: "INFO", Type: EventEngineStarted, Message: "started"},
		{Time: now.Add(-1 * time.Hour), Level: "INFO", Type: EventCycleCompleted, Message: "completed", Data: map[string]any{"files_changed": 3}},
		{Time: now, Level: "ERROR", Type: EventCycleFailed, Message: "failed"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	all, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 events, got %d", len(all))
	}
	if all[0].Type != EventEngineStarted || all[2].Type != EventCycleFailed {
		t.Errorf("order not preserved: %+v", all)
	}

	// Type filter.
	completed, err := log.Read(EventFilter{Type: EventCycleCompleted})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(completed) != 1 || completed[0].Message != "completed" {
		t.Errorf("type filter = %+v", completed)
	}

	// Level filter.
	errs, _ := log.Read(EventFilter{Level: "ERROR"})
	if len(errs) != 1 {
		t.Errorf("level filter got %d events", len(errs))
	}

	// Since filter excludes older events.
	since := now.Add(-90 * time.Minute)
	recent, _ := log.Read(EventFilter{Since: &since})
	if len(recent) != 2 {
		t.Errorf("since filter got %d events, want 2", len(recent))
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := newTestLog(t)

	if err := log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: EventEngineStarted}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	if _, err := f.WriteString("this is not json\n"); err != nil {
		t.Fatalf("appending garbage: %v", err)
	}
	_ = f.Close()

	if err := log.Write(Event{Time: time.Now().UTC(), Level: "INFO", Type: EventEngineStopped}); err != nil {
		t.Fatalf("Write after garbage: %v", err)
	}

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 parseable events, got %d", len(events))
	}
}

func TestEventLog_ReadMissingFile(t *testing.T) {
	log, path := newTestLog(t)
	if err := os.Remove(path); err != nil {
		t.Fatalf("removing log file: %v", err)
	}

	events, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("Read on missing file: %v", err)
	}
	if events != nil {
		t.Errorf("expected nil events, got %v", events)
	}
}
