package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/valter-silva-au/reposyncd/internal/integration"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// gitResponse is one scripted reply for a fake git invocation.
type gitResponse struct {
	out string
	err error
}

// fakeGitRunner replays scripted responses keyed by git subcommand. Calls
// with no scripted response succeed with empty output.
type fakeGitRunner struct {
	calls  [][]string
	script map[string][]gitResponse
}

func (r *fakeGitRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	r.calls = append(r.calls, args)
	if len(args) == 0 {
		return "", errors.New("empty args")
	}
	queue := r.script[args[0]]
	if len(queue) == 0 {
		return "", nil
	}
	resp := queue[0]
	r.script[args[0]] = queue[1:]
	return resp.out, resp.err
}

func (r *fakeGitRunner) countCalls(sub string) int {
	n := 0
	for _, c := range r.calls {
		if len(c) > 0 && c[0] == sub {
			n++
		}
	}
	return n
}

type recordedAction struct {
	actionType models.ActionType
	params     map[string]string
	result     models.ActionResult
}

// fakeAuditLog records appended actions and serves canned prior conflicts.
type fakeAuditLog struct {
	actions   []recordedAction
	conflicts []models.ConflictMatch
	appendErr error
	opens     int
	closes    int
}

func (l *fakeAuditLog) OpenSession() (string, error) {
	l.opens++
	return fmt.Sprintf("S%d", l.opens), nil
}

func (l *fakeAuditLog) CloseSession(_ string) error {
	l.closes++
	return nil
}

func (l *fakeAuditLog) AppendAction(_ string, actionType models.ActionType, params map[string]string, result models.ActionResult) (string, error) {
	if l.appendErr != nil {
		return "", l.appendErr
	}
	l.actions = append(l.actions, recordedAction{actionType: actionType, params: params, result: result})
	return "A1", nil
}
func (l *fakeAuditLog) FindConflictsTouching(_ []string) ([]models.ConflictMatch, error) {
	return l.conflicts, nil
}

// fakeEventLogger records logged events.
type fakeEventLogger struct {
	events []fakeEvent
}

type fakeEvent struct {
	level     string
	eventType string
	data      map[string]any
}

func (l *fakeEventLogger) LogEvent(level, eventType, _ string, data map[string]any) error {
	l.events = append(l.events, fakeEvent{level: level, eventType: eventType, data: data})
	return nil
}

func (l *fakeEventLogger) countType(eventType string) int {
	n := 0
	for _, e := range l.events {
		if e.eventType == eventType {
			n++
		}
	}
	return n
}

// fakeReporter records report deliveries.
type fakeReporter struct {
	reports []ReporterEvent
	failErr error
}

func (r *fakeReporter) Report(event ReporterEvent) error {
	r.reports = append(r.reports, event)
	return r.failErr
}

// repoDir creates a temp directory that passes the IsRepository check.
func repoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("creating fake .git: %v", err)
	}
	return dir
}

func gitFailure(stderr, stdout string, args ...string) error {
	return &integration.GitError{Args: args, ExitCode: 1, Stderr: stderr, Stdout: stdout}
}

// --- Tests ---

func TestSyncCycle_NoChangesIsANoOp(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: ""}},
	}}
	audit := &fakeAuditLog{}
	engine := NewSyncEngine(runner, audit, nil, nil, 3)

	outcome, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")
	if err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if !outcome.Success || outcome.HasChanges {
		t.Errorf("expected clean no-op outcome, got %+v", outcome)
	}

	// Exactly one recorded action, and no add/commit/push ran.
	if len(audit.actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(audit.actions))
	}
	action := audit.actions[0]
	if action.actionType != models.ActionAutoSync || !action.result.Success {
		t.Errorf("unexpected action: %+v", action)
	}
	if action.result.HasChanges == nil || *action.result.HasChanges {
		t.Errorf("expected has_changes=false in action result")
	}
	for _, sub := range []string{"add", "commit", "push"} {
		if runner.countCalls(sub) != 0 {
			t.Errorf("expected no %q call on a clean tree", sub)
		}
	}
}

func TestSyncCycle_CommitsAndPushesChanges(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.js\n M b.js\n?? c.py"}},
	}}
	audit := &fakeAuditLog{}
	events := &fakeEventLogger{}
	engine := NewSyncEngine(runner, audit, nil, events, 3)

	outcome, err := engine.SyncCycle(context.Background(), dir, models.ActionSyncRepository, "S1")
	if err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if !outcome.HasChanges || outcome.FilesChanged != 3 {
		t.Errorf("expected 3 changed files, got %+v", outcome)
	}

	want := "Automatic update: 3 files changed (2 js, 1 py)"
	if outcome.CommitMessage != want {
		t.Errorf("commit message = %q, want %q", outcome.CommitMessage, want)
	}
	if outcome.PushRetries != 0 {
		t.Errorf("expected no push retries, got %d", outcome.PushRetries)
	}
	if runner.countCalls("push") != 1 {
		t.Errorf("expected exactly one push, got %d", runner.countCalls("push"))
	}
	if events.countType("sync.cycle_completed") != 1 {
		t.Errorf("expected one cycle_completed event")
	}
}

func TestSyncCycle_FileCountMatchesCommitMessage(t *testing.T) {
	dir := repoDir(t)
	// Unparseable status lines count in neither the message nor the outcome.
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.go\nwarning\n M b.go"}},
	}}
	engine := NewSyncEngine(runner, &fakeAuditLog{}, nil, nil, 3)

	outcome, err := engine.SyncCycle(context.Background(), dir, models.ActionSyncRepository, "S1")
	if err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if outcome.FilesChanged != 2 {
		t.Errorf("FilesChanged = %d, want 2", outcome.FilesChanged)
	}
	want := "Automatic update: 2 files changed (2 go)"
	if outcome.CommitMessage != want {
		t.Errorf("commit message = %q, want %q", outcome.CommitMessage, want)
	}
}

func TestSyncCycle_RejectsNonRepository(t *testing.T) {
	dir := t.TempDir() // no .git
	runner := &fakeGitRunner{script: map[string][]gitResponse{}}
	audit := &fakeAuditLog{}
	engine := NewSyncEngine(runner, audit, nil, nil, 3)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")
	if !errors.Is(err, ErrNotARepository) {
		t.Fatalf("expected ErrNotARepository, got %v", err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no git calls against a non-repository")
	}
	if len(audit.actions) != 1 || audit.actions[0].result.Success {
		t.Errorf("expected one failed action, got %+v", audit.actions)
	}
}

func TestSyncCycle_PullConflictIsReportedAndReturned(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"pull": {{err: gitFailure("", "CONFLICT (content): Merge conflict in a.txt\nAutomatic merge failed; fix conflicts and then commit the result.", "pull")}},
		"diff": {{out: "a.txt\nb.txt"}},
	}}
	prior := []models.ConflictMatch{{SessionID: "S0", Files: []string{"a.txt"}}}
	audit := &fakeAuditLog{conflicts: prior}
	reporter := &fakeReporter{}
	events := &fakeEventLogger{}
	engine := NewSyncEngine(runner, audit, reporter, events, 3)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(conflict.Files) != 2 || conflict.Files[0] != "a.txt" {
		t.Errorf("conflict files = %v", conflict.Files)
	}
	if len(conflict.Prior) != 1 || conflict.Prior[0].SessionID != "S0" {
		t.Errorf("prior conflicts = %v", conflict.Prior)
	}

	// The conflict is recorded as its own action type, never resolved.
	if len(audit.actions) != 1 || audit.actions[0].actionType != models.ActionMergeConflict {
		t.Fatalf("expected one merge_conflict action, got %+v", audit.actions)
	}
	if len(audit.actions[0].result.ConflictedFiles) != 2 {
		t.Errorf("expected conflicted files recorded, got %+v", audit.actions[0].result)
	}

	if len(reporter.reports) != 1 {
		t.Fatalf("expected one report delivery, got %d", len(reporter.reports))
	}
	if len(reporter.reports[0].PriorConflicts) != 1 {
		t.Errorf("expected prior conflicts in report")
	}

	// No commit or push after a conflicting pull.
	if runner.countCalls("commit") != 0 || runner.countCalls("push") != 0 {
		t.Errorf("expected cycle aborted after conflict")
	}
}

func TestSyncCycle_ReporterFailureDoesNotMaskConflict(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"pull": {{err: gitFailure("error: Your local changes to the following files would be overwritten by merge:", "", "pull")}},
	}}
	reporter := &fakeReporter{failErr: errors.New("webhook down")}
	engine := NewSyncEngine(runner, &fakeAuditLog{}, reporter, &fakeEventLogger{}, 3)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError despite reporter failure, got %v", err)
	}
}

func TestSyncCycle_PushRejectionRecovers(t *testing.T) {
	dir := repoDir(t)
	rejection := gitFailure("! [rejected]  main -> main (fetch first)\nerror: failed to push some refs", "", "push")
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.go"}},
		"push":   {{err: rejection}, {out: ""}},
	}}
	audit := &fakeAuditLog{}
	events := &fakeEventLogger{}
	engine := NewSyncEngine(runner, audit, nil, events, 3)

	outcome, err := engine.SyncCycle(context.Background(), dir, models.ActionSyncRepository, "S1")
	if err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if outcome.PushRetries != 1 {
		t.Errorf("expected 1 push retry, got %d", outcome.PushRetries)
	}
	// Initial pull + recovery pull.
	if runner.countCalls("pull") != 2 {
		t.Errorf("expected 2 pulls, got %d", runner.countCalls("pull"))
	}
	if events.countType("sync.push_retried") != 1 {
		t.Errorf("expected one push_retried event")
	}
	if outcome.PushRetries > 0 && audit.actions[0].result.PushRetries != 1 {
		t.Errorf("expected retry count in audit action, got %+v", audit.actions[0].result)
	}
}

func TestSyncCycle_PushRetryBudgetExhausted(t *testing.T) {
	dir := repoDir(t)
	rejection := gitFailure("! [rejected]  main -> main (non-fast-forward)", "", "push")
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.go"}},
		"push":   {{err: rejection}, {err: rejection}, {err: rejection}},
	}}
	audit := &fakeAuditLog{}
	engine := NewSyncEngine(runner, audit, nil, &fakeEventLogger{}, 2)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionSyncRepository, "S1")
	if !errors.Is(err, ErrPushRetryBudget) {
		t.Fatalf("expected ErrPushRetryBudget, got %v", err)
	}
	// Initial push plus two recovery rounds.
	if runner.countCalls("push") != 3 {
		t.Errorf("expected 3 pushes, got %d", runner.countCalls("push"))
	}
	if len(audit.actions) != 1 || audit.actions[0].result.Success {
		t.Errorf("expected one failed action, got %+v", audit.actions)
	}
}

func TestSyncCycle_ConflictDuringPushRecovery(t *testing.T) {
	dir := repoDir(t)
	rejection := gitFailure("! [rejected]  main -> main (fetch first)", "", "push")
	conflictPull := gitFailure("", "CONFLICT (content): Merge conflict in a.txt", "pull")
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.txt"}},
		"push":   {{err: rejection}},
		"pull":   {{out: ""}, {err: conflictPull}},
		"diff":   {{out: "a.txt"}},
	}}
	audit := &fakeAuditLog{}
	engine := NewSyncEngine(runner, audit, nil, &fakeEventLogger{}, 3)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionSyncRepository, "S1")

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError from recovery pull, got %v", err)
	}
	if len(audit.actions) != 1 || audit.actions[0].actionType != models.ActionMergeConflict {
		t.Errorf("expected merge_conflict action, got %+v", audit.actions)
	}
}

func TestSyncCycle_NothingToCommitProceeds(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"status": {{out: " M a.go"}},
		"commit": {{err: gitFailure("", "nothing to commit, working tree clean", "commit")}},
	}}
	audit := &fakeAuditLog{}
	engine := NewSyncEngine(runner, audit, nil, nil, 3)

	outcome, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")
	if err != nil {
		t.Fatalf("SyncCycle: %v", err)
	}
	if !outcome.Success {
		t.Errorf("expected success when staged changes net to no diff")
	}
	if runner.countCalls("push") != 1 {
		t.Errorf("expected push to still run")
	}
}

func TestSyncCycle_GenericPullFailure(t *testing.T) {
	dir := repoDir(t)
	runner := &fakeGitRunner{script: map[string][]gitResponse{
		"pull": {{err: gitFailure("fatal: unable to access remote", "", "pull")}},
	}}
	audit := &fakeAuditLog{}
	events := &fakeEventLogger{}
	engine := NewSyncEngine(runner, audit, nil, events, 3)

	_, err := engine.SyncCycle(context.Background(), dir, models.ActionAutoSync, "S1")
	if err == nil {
		t.Fatal("expected pull failure to propagate")
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		t.Fatalf("a network failure must not classify as a conflict: %v", err)
	}
	if len(audit.actions) != 1 || audit.actions[0].result.Success {
		t.Errorf("expected one failed action, got %+v", audit.actions)
	}
	if events.countType("sync.cycle_failed") != 1 {
		t.Errorf("expected one cycle_failed event")
	}
}

func TestIsRepository(t *testing.T) {
	if IsRepository(t.TempDir()) {
		t.Error("empty directory must not be a repository")
	}
	if !IsRepository(repoDir(t)) {
		t.Error("directory with .git must be a repository")
	}
}
