package core

import (
	"time"

	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// AuditLog is the subset of the storage audit log that the engine and
// lifecycle controller need. Defining it here avoids importing the storage
// package directly.
type AuditLog interface {
	OpenSession() (string, error)
	CloseSession(sessionID string) error
	AppendAction(sessionID string, actionType models.ActionType, params map[string]string, result models.ActionResult) (string, error)
	FindConflictsTouching(files []string) ([]models.ConflictMatch, error)
}

// EventLogger is the subset of the observability event log that core
// services need.
type EventLogger interface {
	LogEvent(level, eventType, message string, data map[string]any) error
}

// ReporterEvent is the payload delivered to the external conflict/failure
// reporting collaborator.
type ReporterEvent struct {
	Type            string
	ProjectPath     string
	Error           string
	Timestamp       time.Time
	ConflictedFiles []string
	PriorConflicts  []models.ConflictMatch
}

// ConflictReporter forwards conflicts and failures to an external channel.
// Delivery failures must never mask the underlying error; callers log them
// and move on.
type ConflictReporter interface {
	Report(event ReporterEvent) error
}

// ProjectPathSubscriber is notified, best-effort, whenever the active
// project changes.
type ProjectPathSubscriber interface {
	SetProjectPath(path string) error
}
