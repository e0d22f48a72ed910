package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// Configuration errors. These are surfaced synchronously to the caller and
// never retried.
var (
	ErrNoActiveProject   = errors.New("no active project set")
	ErrEngineNotRunning  = errors.New("sync engine is not running")
	ErrNotARepository    = errors.New("directory is not a git repository")
	ErrAlreadyRepository = errors.New("directory is already a git repository")
)

// ErrPushRetryBudget indicates the bounded pull-then-push recovery loop was
// exhausted without the push being accepted.
var ErrPushRetryBudget = errors.New("push retry budget exceeded")

// ConflictError is returned when a pull or push failed with merge-conflict
// markers. It carries the conflicted files and any prior conflicts touching
// them, and is never silently resolved.
type ConflictError struct {
	Files []string
	Prior []models.ConflictMatch
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("merge conflict in %s: %v", strings.Join(e.Files, ", "), e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }
