package models

import "time"

// SessionStatus describes the lifecycle state of a sync session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// ActionType identifies the kind of audited operation a sync session recorded.
type ActionType string

const (
	ActionSetProjectPath ActionType = "set_project_path"
	ActionSyncRepository ActionType = "sync_repository"
	ActionInitRepository ActionType = "init_repository"
	ActionMergeConflict  ActionType = "merge_conflict"
	ActionAutoSync       ActionType = "auto_sync"
)

// ActionResult captures the outcome of a single audited operation.
// ConflictedFiles is only populated for merge_conflict actions.
type ActionResult struct {
	Success         bool     `yaml:"success"`
	HasChanges      *bool    `yaml:"has_changes,omitempty"`
	CommitMessage   string   `yaml:"commit_message,omitempty"`
	ConflictedFiles []string `yaml:"conflicted_files,omitempty"`
	PushRetries     int      `yaml:"push_retries,omitempty"`
	Error           string   `yaml:"error,omitempty"`
}

// SyncAction is one immutable audit record appended to a session.
type SyncAction struct {
	ID         string            `yaml:"id"`
	Type       ActionType        `yaml:"type"`
	Parameters map[string]string `yaml:"parameters,omitempty"`
	Result     ActionResult      `yaml:"result"`
	Timestamp  time.Time         `yaml:"timestamp"`
}

// SyncSession represents one start/stop lifetime of the sync engine and the
// ordered actions performed within it.
type SyncSession struct {
	ID        string        `yaml:"id"`
	StartTime time.Time     `yaml:"start_time"`
	EndTime   *time.Time    `yaml:"end_time,omitempty"`
	Status    SessionStatus `yaml:"status"`
	Actions   []SyncAction  `yaml:"actions"`
}

// AuditDocument is the whole-file persistence layout of the audit log:
// one document per agent identity, keyed by session ID.
type AuditDocument struct {
	Version  string                 `yaml:"version"`
	Sessions map[string]SyncSession `yaml:"sessions"`
}

// ConflictMatch is one prior merge_conflict action whose conflicted-file set
// intersects a lookup, annotated with the session it occurred in.
type ConflictMatch struct {
	SessionID string    `yaml:"session_id" json:"session_id"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Files     []string  `yaml:"files" json:"files"`
}

// SyncOutcome is the caller-visible result of one completed sync cycle.
type SyncOutcome struct {
	Success       bool
	HasChanges    bool
	FilesChanged  int
	CommitMessage string
	PushRetries   int
}
