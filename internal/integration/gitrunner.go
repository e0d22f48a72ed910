// Package integration wraps the external processes and remote services that
// reposyncd coordinates: the git client itself and remote URL authentication.
package integration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// GitError carries the exit code and captured output of a git invocation
// that ran but exited non-zero. Stdout is kept because git reports some
// conditions ("nothing to commit") there rather than on stderr.
type GitError struct {
	Args     []string
	ExitCode int
	Stderr   string
	Stdout   string
}

func (e *GitError) Error() string {
	stderr := strings.TrimSpace(e.Stderr)
	if stderr == "" {
		return fmt.Sprintf("git %s: exit code %d", strings.Join(e.Args, " "), e.ExitCode)
	}
	return fmt.Sprintf("git %s: exit code %d: %s", strings.Join(e.Args, " "), e.ExitCode, stderr)
}

// LaunchError indicates the git binary could not be started at all
// (missing binary, permission denied). It is distinct from a non-zero exit.
type LaunchError struct {
	Bin string
	Err error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Bin, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// TimeoutError indicates a git invocation exceeded its deadline.
type TimeoutError struct {
	Args  []string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("git %s: timed out after %s", strings.Join(e.Args, " "), e.After)
}

// GitRunner executes the external git client non-interactively against an
// explicit working directory. It performs no retries; retry policy belongs
// to the sync engine.
type GitRunner interface {
	// Run invokes git with the given arguments in dir and returns trimmed
	// stdout on success. Failures are typed: *GitError for non-zero exits,
	// *LaunchError when the client cannot be started, *TimeoutError when
	// the per-invocation deadline elapses.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// gitRunner implements GitRunner via os/exec.
type gitRunner struct {
	bin     string
	timeout time.Duration
}

// NewGitRunner creates a GitRunner that invokes the given git binary with a
// per-invocation timeout. An empty bin defaults to "git"; a zero timeout
// disables the deadline.
func NewGitRunner(bin string, timeout time.Duration) GitRunner {
	if bin == "" {
		bin = "git"
	}
	return &gitRunner{bin: bin, timeout: timeout}
}

// Run executes a single git command. The target directory is passed
// explicitly so that no process-wide working directory is ever mutated.
func (r *gitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("running git: empty argument list")
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.bin, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &TimeoutError{Args: args, After: r.timeout}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &GitError{
				Args:     args,
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
				Stdout:   stdout.String(),
			}
		}
		return "", &LaunchError{Bin: r.bin, Err: err}
	}

	return strings.TrimSpace(stdout.String()), nil
}
