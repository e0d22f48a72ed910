// Package storage persists reposyncd's durable state: the per-agent,
// append-only audit log of synchronization sessions and actions.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/valter-silva-au/reposyncd/pkg/models"
	"gopkg.in/yaml.v3"
)

// AuditLogManager defines the interface for the durable, append-only record
// of sync sessions keyed by session ID. Every mutation is flushed to disk
// immediately, bounding data loss on crash to the in-flight call only.
type AuditLogManager interface {
	OpenSession() (string, error)
	CloseSession(sessionID string) error
	AppendAction(sessionID string, actionType models.ActionType, params map[string]string, result models.ActionResult) (string, error)
	FindConflictsTouching(files []string) ([]models.ConflictMatch, error)
	ActiveSession() *models.SyncSession
	GetSession(sessionID string) (*models.SyncSession, error)
	Sessions() []models.SyncSession
	Load() error
	Save() error
}

// fileAuditLog implements AuditLogManager with one whole-file YAML document
// per agent identity under audit/ in the base directory. The mutex serializes
// access to doc: timer-driven cycles, MCP handlers, and signal handling all
// mutate the same document from different goroutines.
type fileAuditLog struct {
	mu       sync.Mutex
	basePath string
	agentID  string
	doc      models.AuditDocument
}

// NewAuditLogManager creates an AuditLogManager for the given agent identity,
// backed by audit/<agentID>.yaml under basePath.
func NewAuditLogManager(basePath, agentID string) AuditLogManager {
	if agentID == "" {
		agentID = "default"
	}
	return &fileAuditLog{
		basePath: basePath,
		agentID:  agentID,
		doc: models.AuditDocument{
			Version:  "1.0",
			Sessions: make(map[string]models.SyncSession),
		},
	}
}

func (l *fileAuditLog) auditDir() string {
	return filepath.Join(l.basePath, "audit")
}

func (l *fileAuditLog) docPath() string {
	return filepath.Join(l.auditDir(), l.agentID+".yaml")
}

// newID returns a fresh ULID. ULIDs sort lexicographically by creation time,
// which keeps session iteration order chronological.
func newID() string {
	return ulid.Make().String()
}

// OpenSession creates a new active session and persists it. A session left
// active by a crashed process is closed first so that exactly one session is
// ever open.
func (l *fileAuditLog) OpenSession() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()

	for id, session := range l.doc.Sessions {
		if session.Status == models.SessionActive {
			end := now
			session.EndTime = &end
			session.Status = models.SessionCompleted
			l.doc.Sessions[id] = session
		}
	}

	session := models.SyncSession{
		ID:        newID(),
		StartTime: now,
		Status:    models.SessionActive,
	}
	l.doc.Sessions[session.ID] = session

	if err := l.saveLocked(); err != nil {
		return "", fmt.Errorf("opening session: %w", err)
	}
	return session.ID, nil
}

// CloseSession marks the named session completed and persists it.
func (l *fileAuditLog) CloseSession(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	session, ok := l.doc.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("closing session: %s not found", sessionID)
	}

	end := time.Now().UTC()
	session.EndTime = &end
	session.Status = models.SessionCompleted
	l.doc.Sessions[sessionID] = session

	if err := l.saveLocked(); err != nil {
		return fmt.Errorf("closing session: %w", err)
	}
	return nil
}

// AppendAction appends an immutable action to the named session and persists
// the document. It returns the generated action ID.
func (l *fileAuditLog) AppendAction(sessionID string, actionType models.ActionType, params map[string]string, result models.ActionResult) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	session, ok := l.doc.Sessions[sessionID]
	if !ok {
		return "", fmt.Errorf("appending action: session %s not found", sessionID)
	}
	if session.Status != models.SessionActive {
		return "", fmt.Errorf("appending action: session %s is not active", sessionID)
	}

	action := models.SyncAction{
		ID:         newID(),
		Type:       actionType,
		Parameters: params,
		Result:     result,
		Timestamp:  time.Now().UTC(),
	}
	session.Actions = append(session.Actions, action)
	l.doc.Sessions[sessionID] = session

	if err := l.saveLocked(); err != nil {
		return "", fmt.Errorf("appending action: %w", err)
	}
	return action.ID, nil
}

// FindConflictsTouching scans every session's actions for prior merge_conflict
// entries whose conflicted-file set intersects the given paths. Matches are
// returned in session iteration order (chronological by session ID), not by
// recency; callers needing recency must sort explicitly.
func (l *fileAuditLog) FindConflictsTouching(files []string) ([]models.ConflictMatch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lookup := make(map[string]bool, len(files))
	for _, f := range files {
		lookup[f] = true
	}

	var matches []models.ConflictMatch
	for _, id := range l.sortedSessionIDs() {
		session := l.doc.Sessions[id]
		for _, action := range session.Actions {
			if action.Type != models.ActionMergeConflict {
				continue
			}
			if !intersects(action.Result.ConflictedFiles, lookup) {
				continue
			}
			matches = append(matches, models.ConflictMatch{
				SessionID: session.ID,
				Timestamp: action.Timestamp,
				Files:     action.Result.ConflictedFiles,
			})
		}
	}
	return matches, nil
}

// ActiveSession returns the currently open session, or nil if none is open.
func (l *fileAuditLog) ActiveSession() *models.SyncSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.sortedSessionIDs() {
		session := l.doc.Sessions[id]
		if session.Status == models.SessionActive {
			cp := session
			return &cp
		}
	}
	return nil
}

// GetSession returns a copy of the named session.
func (l *fileAuditLog) GetSession(sessionID string) (*models.SyncSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	session, ok := l.doc.Sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s not found", sessionID)
	}
	cp := session
	return &cp, nil
}

// Sessions returns all sessions in chronological order.
func (l *fileAuditLog) Sessions() []models.SyncSession {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := l.sortedSessionIDs()
	result := make([]models.SyncSession, 0, len(ids))
	for _, id := range ids {
		result = append(result, l.doc.Sessions[id])
	}
	return result
}

// Load reads the audit document from disk. A missing or unparseable document
// is treated as empty, never fatal.
func (l *fileAuditLog) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.docPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("loading audit log: %w", err)
	}

	var doc models.AuditDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		// Corrupt document: start fresh rather than refusing to run.
		l.doc = models.AuditDocument{
			Version:  "1.0",
			Sessions: make(map[string]models.SyncSession),
		}
		return nil
	}

	if doc.Sessions == nil {
		doc.Sessions = make(map[string]models.SyncSession)
	}
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	l.doc = doc
	return nil
}

// Save writes the whole audit document to disk.
func (l *fileAuditLog) Save() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// saveLocked writes the document; the caller must hold mu.
func (l *fileAuditLog) saveLocked() error {
	if err := os.MkdirAll(l.auditDir(), 0o755); err != nil {
		return fmt.Errorf("saving audit log: creating directory: %w", err)
	}

	data, err := yaml.Marshal(&l.doc)
	if err != nil {
		return fmt.Errorf("saving audit log: %w", err)
	}
	if err := os.WriteFile(l.docPath(), data, 0o600); err != nil {
		return fmt.Errorf("saving audit log: %w", err)
	}
	return nil
}

// sortedSessionIDs returns session IDs in lexicographic (and therefore
// chronological) order, giving deterministic iteration over the map.
func (l *fileAuditLog) sortedSessionIDs() []string {
	ids := make([]string, 0, len(l.doc.Sessions))
	for id := range l.doc.Sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func intersects(files []string, lookup map[string]bool) bool {
	for _, f := range files {
		if lookup[f] {
			return true
		}
	}
	return false
}
