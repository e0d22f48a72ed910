// Package core contains the business logic for reposyncd: the
// synchronization engine, the lifecycle controller, configuration, and
// commit-message synthesis.
package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/valter-silva-au/reposyncd/internal/integration"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// conflictMarkers are the substrings in git output that identify an
// unresolved merge conflict.
var conflictMarkers = []string{
	"CONFLICT",
	"Automatic merge failed",
	"needs merge",
	"would be overwritten by merge",
}

// pushRejectionMarkers identify the recoverable "remote has newer work"
// condition on push.
var pushRejectionMarkers = []string{
	"[rejected]",
	"non-fast-forward",
	"fetch first",
	"failed to push some refs",
}

// SyncEngine orchestrates one full sync cycle (pull, detect changes, add,
// commit, push) against an explicit project directory. It is the single
// point that classifies raw git failures into the error taxonomy; the
// runner below it never retries, and the controller above it never
// reclassifies.
type SyncEngine struct {
	runner     integration.GitRunner
	audit      AuditLog
	reporter   ConflictReporter
	events     EventLogger
	retryLimit int

	// mu serializes cycles so a timer-driven and a caller-driven sync can
	// never interleave git operations on the same working copy.
	mu sync.Mutex
}

// NewSyncEngine creates a SyncEngine. reporter and events may be nil, in
// which case reporting and event logging are skipped. retryLimit bounds the
// pull-then-push recovery loop; values below 1 default to 3.
func NewSyncEngine(runner integration.GitRunner, audit AuditLog, reporter ConflictReporter, events EventLogger, retryLimit int) *SyncEngine {
	if retryLimit < 1 {
		retryLimit = 3
	}
	return &SyncEngine{
		runner:     runner,
		audit:      audit,
		reporter:   reporter,
		events:     events,
		retryLimit: retryLimit,
	}
}

// IsRepository reports whether dir contains a .git entry.
func IsRepository(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

// SyncCycle runs one pull, detect-changes, add, commit, push cycle against
// dir, appending exactly one action of the given trigger type (or
// merge_conflict) to the open session before returning. The directory is
// threaded explicitly into every git invocation; no process-wide state is
// touched.
func (e *SyncEngine) SyncCycle(ctx context.Context, dir string, trigger models.ActionType, sessionID string) (*models.SyncOutcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	params := map[string]string{"project_path": dir}

	if !IsRepository(dir) {
		err := fmt.Errorf("%w: %s", ErrNotARepository, dir)
		e.recordFailure(sessionID, trigger, params, err)
		return nil, err
	}

	// Pull before anything else. A conflicting pull routes to conflict
	// handling before the error propagates.
	if _, err := e.runner.Run(ctx, dir, "pull"); err != nil {
		if isMergeConflict(err) {
			return nil, e.handleConflict(ctx, dir, sessionID, err)
		}
		e.recordFailure(sessionID, trigger, params, err)
		return nil, fmt.Errorf("pulling: %w", err)
	}

	status, err := e.runner.Run(ctx, dir, "status", "--porcelain")
	if err != nil {
		e.recordFailure(sessionID, trigger, params, err)
		return nil, fmt.Errorf("checking status: %w", err)
	}

	if status == "" {
		// Clean working tree: the cycle ends successfully as a no-op.
		outcome := &models.SyncOutcome{Success: true, HasChanges: false}
		e.recordSuccess(sessionID, trigger, params, outcome)
		return outcome, nil
	}

	if _, err := e.runner.Run(ctx, dir, "add", "-A"); err != nil {
		e.recordFailure(sessionID, trigger, params, err)
		return nil, fmt.Errorf("staging changes: %w", err)
	}

	statusLines := strings.Split(status, "\n")
	message := ComposeCommitMessage(statusLines)
	if _, err := e.runner.Run(ctx, dir, "commit", "-m", message); err != nil {
		// Staged changes can net to no diff; git reports this as a failure
		// but the cycle treats it as success with no new commit.
		if !isNothingToCommit(err) {
			e.recordFailure(sessionID, trigger, params, err)
			return nil, fmt.Errorf("committing: %w", err)
		}
	}

	retries, err := e.pushWithRecovery(ctx, dir)
	if err != nil {
		if isMergeConflict(err) {
			return nil, e.handleConflict(ctx, dir, sessionID, err)
		}
		e.recordFailure(sessionID, trigger, params, err)
		return nil, err
	}

	outcome := &models.SyncOutcome{
		Success:       true,
		HasChanges:    true,
		FilesChanged:  CountChangedFiles(statusLines),
		CommitMessage: message,
		PushRetries:   retries,
	}
	e.recordSuccess(sessionID, trigger, params, outcome)
	return outcome, nil
}

// pushWithRecovery pushes, recovering from the "remote has newer work"
// rejection by pulling and pushing again, up to the retry budget. It returns
// the number of recovery rounds performed.
func (e *SyncEngine) pushWithRecovery(ctx context.Context, dir string) (int, error) {
	_, err := e.runner.Run(ctx, dir, "push")
	if err == nil {
		return 0, nil
	}

	for attempt := 1; attempt <= e.retryLimit; attempt++ {
		if !isPushRejected(err) {
			return attempt - 1, fmt.Errorf("pushing: %w", err)
		}

		e.logEvent("WARN", "sync.push_retried", "push rejected, pulling and retrying", map[string]any{
			"attempt": attempt,
		})

		if _, pullErr := e.runner.Run(ctx, dir, "pull"); pullErr != nil {
			// A conflicting recovery pull is a merge conflict, not a push
			// failure.
			if isMergeConflict(pullErr) {
				return attempt, pullErr
			}
			return attempt, fmt.Errorf("pulling during push recovery: %w", pullErr)
		}

		_, err = e.runner.Run(ctx, dir, "push")
		if err == nil {
			return attempt, nil
		}
	}

	return e.retryLimit, fmt.Errorf("%w after %d attempts: %v", ErrPushRetryBudget, e.retryLimit, err)
}

// handleConflict enumerates conflicted files, correlates them with prior
// conflicts from the audit log, records a merge_conflict action, and
// notifies the external reporter. Reporting failures are logged and
// swallowed; the conflict itself is always returned to the caller.
func (e *SyncEngine) handleConflict(ctx context.Context, dir, sessionID string, cause error) error {
	files := e.conflictedFiles(ctx, dir)

	prior, err := e.audit.FindConflictsTouching(files)
	if err != nil {
		e.logEvent("WARN", "sync.conflict_detected", "prior-conflict lookup failed", map[string]any{
			"error": err.Error(),
		})
		prior = nil
	}

	now := time.Now().UTC()
	if _, err := e.audit.AppendAction(sessionID, models.ActionMergeConflict,
		map[string]string{"project_path": dir},
		models.ActionResult{
			Success:         false,
			ConflictedFiles: files,
			Error:           cause.Error(),
		}); err != nil {
		e.logEvent("ERROR", "sync.conflict_detected", "recording conflict action failed", map[string]any{
			"error": err.Error(),
		})
	}

	e.logEvent("ERROR", "sync.conflict_detected", "merge conflict detected", map[string]any{
		"files":           toAnySlice(files),
		"prior_conflicts": len(prior),
	})

	if e.reporter != nil {
		reportErr := e.reporter.Report(ReporterEvent{
			Type:            "merge_conflict",
			ProjectPath:     dir,
			Error:           cause.Error(),
			Timestamp:       now,
			ConflictedFiles: files,
			PriorConflicts:  prior,
		})
		if reportErr != nil {
			e.logEvent("WARN", "sync.conflict_detected", "conflict report delivery failed", map[string]any{
				"error": reportErr.Error(),
			})
		}
	}

	return &ConflictError{Files: files, Prior: prior, Err: cause}
}

// conflictedFiles lists paths in the unmerged state. Enumeration failures
// degrade to an empty list rather than masking the conflict.
func (e *SyncEngine) conflictedFiles(ctx context.Context, dir string) []string {
	out, err := e.runner.Run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil || out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func (e *SyncEngine) recordSuccess(sessionID string, trigger models.ActionType, params map[string]string, outcome *models.SyncOutcome) {
	hasChanges := outcome.HasChanges
	if _, err := e.audit.AppendAction(sessionID, trigger, params, models.ActionResult{
		Success:       true,
		HasChanges:    &hasChanges,
		CommitMessage: outcome.CommitMessage,
		PushRetries:   outcome.PushRetries,
	}); err != nil {
		e.logEvent("ERROR", "sync.cycle_completed", "recording cycle action failed", map[string]any{
			"error": err.Error(),
		})
	}

	e.logEvent("INFO", "sync.cycle_completed", "sync cycle completed", map[string]any{
		"has_changes":   outcome.HasChanges,
		"files_changed": outcome.FilesChanged,
		"push_retries":  outcome.PushRetries,
	})
}

func (e *SyncEngine) recordFailure(sessionID string, trigger models.ActionType, params map[string]string, cause error) {
	if _, err := e.audit.AppendAction(sessionID, trigger, params, models.ActionResult{
		Success: false,
		Error:   cause.Error(),
	}); err != nil {
		e.logEvent("ERROR", "sync.cycle_failed", "recording cycle action failed", map[string]any{
			"error": err.Error(),
		})
	}

	e.logEvent("ERROR", "sync.cycle_failed", "sync cycle failed", map[string]any{
		"error": cause.Error(),
	})
}

// logEvent writes to the event log when one is configured. Event-log
// failures never escalate.
func (e *SyncEngine) logEvent(level, eventType, message string, data map[string]any) {
	if e.events == nil {
		return
	}
	_ = e.events.LogEvent(level, eventType, message, data)
}

// isMergeConflict reports whether the git failure output matches a known
// conflict marker.
func isMergeConflict(err error) bool {
	return matchesMarker(err, conflictMarkers)
}

// isPushRejected reports whether the git failure output matches the
// recoverable push-rejection signature.
func isPushRejected(err error) bool {
	return matchesMarker(err, pushRejectionMarkers)
}

func matchesMarker(err error, markers []string) bool {
	var gitErr *integration.GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	combined := gitErr.Stderr + "\n" + gitErr.Stdout
	for _, marker := range markers {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}

// isNothingToCommit matches git's report that staged changes net to no diff.
func isNothingToCommit(err error) bool {
	var gitErr *integration.GitError
	if !errors.As(err, &gitErr) {
		return false
	}
	combined := gitErr.Stderr + "\n" + gitErr.Stdout
	return strings.Contains(combined, "nothing to commit")
}

func toAnySlice(files []string) []any {
	out := make([]any, len(files))
	for i, f := range files {
		out[i] = f
	}
	return out
}
