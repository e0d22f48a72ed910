package core

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/valter-silva-au/reposyncd/internal/integration"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// DefaultSyncInterval is the period of the unattended sync timer.
const DefaultSyncInterval = 10 * time.Minute

// LifecycleController starts and stops the sync engine, owns the
// active-project pointer, and drives the periodic timer that triggers
// unattended sync cycles.
type LifecycleController struct {
	engine *SyncEngine
	runner integration.GitRunner
	audit  AuditLog
	events EventLogger
	creds  models.GitCredentials

	interval    time.Duration
	subscribers []ProjectPathSubscriber

	mu          sync.Mutex
	running     bool
	sessionID   string
	projectPath string
	stopTimer   chan struct{}
}

// NewLifecycleController creates a controller around the given engine.
// events may be nil. An interval of zero falls back to DefaultSyncInterval.
func NewLifecycleController(engine *SyncEngine, runner integration.GitRunner, audit AuditLog, events EventLogger, creds models.GitCredentials, interval time.Duration) *LifecycleController {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &LifecycleController{
		engine:   engine,
		runner:   runner,
		audit:    audit,
		events:   events,
		creds:    creds,
		interval: interval,
	}
}

// Subscribe registers a component to be notified when the active project
// changes. Notification is best-effort.
func (c *LifecycleController) Subscribe(sub ProjectPathSubscriber) {
	c.subscribers = append(c.subscribers, sub)
}

// Start opens a session, arms the periodic timer, and runs one immediate
// cycle when a project is already active. Calling Start on a running
// controller is a logged no-op.
func (c *LifecycleController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		c.logEvent("INFO", "engine.start_ignored", "start ignored: already running", nil)
		return nil
	}

	sessionID, err := c.audit.OpenSession()
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("starting sync engine: %w", err)
	}
	c.sessionID = sessionID
	c.running = true
	c.stopTimer = make(chan struct{})
	projectPath := c.projectPath
	stop := c.stopTimer
	c.mu.Unlock()

	c.logEvent("INFO", "engine.started", "sync engine started", map[string]any{
		"session_id": sessionID,
		"interval":   c.interval.String(),
	})
	c.warnMissingCredentials()

	if projectPath != "" {
		// The engine records the cycle's own failure events; start still
		// succeeds.
		_, _ = c.engine.SyncCycle(ctx, projectPath, models.ActionAutoSync, sessionID)
	}

	go c.timerLoop(stop)
	return nil
}

// Stop disarms the timer and closes the session. It does not cancel a cycle
// already in flight. Calling Stop on a stopped controller is a logged no-op.
func (c *LifecycleController) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		c.logEvent("INFO", "engine.stop_ignored", "stop ignored: not running", nil)
		return nil
	}
	c.running = false
	close(c.stopTimer)
	sessionID := c.sessionID
	c.sessionID = ""
	c.mu.Unlock()

	if err := c.audit.CloseSession(sessionID); err != nil {
		return fmt.Errorf("stopping sync engine: %w", err)
	}
	c.logEvent("INFO", "engine.stopped", "sync engine stopped", map[string]any{
		"session_id": sessionID,
	})
	return nil
}

// SyncRepository runs one caller-triggered sync cycle against the active
// project. It fails fast, with no audit mutation, when the engine is not
// running or no project is set.
func (c *LifecycleController) SyncRepository(ctx context.Context) (*models.SyncOutcome, error) {
	c.mu.Lock()
	running, sessionID, projectPath := c.running, c.sessionID, c.projectPath
	c.mu.Unlock()

	if !running {
		return nil, ErrEngineNotRunning
	}
	if projectPath == "" {
		return nil, ErrNoActiveProject
	}

	return c.engine.SyncCycle(ctx, projectPath, models.ActionSyncRepository, sessionID)
}

// SyncOnce runs a single caller-triggered cycle inside a short-lived
// session, for one-shot invocations where no daemon holds a session open.
// When the controller is already running it delegates to SyncRepository.
func (c *LifecycleController) SyncOnce(ctx context.Context) (*models.SyncOutcome, error) {
	c.mu.Lock()
	running, projectPath := c.running, c.projectPath
	c.mu.Unlock()

	if running {
		return c.SyncRepository(ctx)
	}
	if projectPath == "" {
		return nil, ErrNoActiveProject
	}

	sessionID, err := c.audit.OpenSession()
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	outcome, syncErr := c.engine.SyncCycle(ctx, projectPath, models.ActionSyncRepository, sessionID)
	if err := c.audit.CloseSession(sessionID); err != nil {
		c.logEvent("WARN", "engine.stopped", "closing one-shot session failed", map[string]any{
			"error": err.Error(),
		})
	}
	return outcome, syncErr
}

// SetProjectPath validates the directory and swaps the active project. It
// does not trigger a cycle. Registered subscribers are notified best-effort;
// a failing subscriber never blocks the rest.
func (c *LifecycleController) SetProjectPath(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("setting project path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("setting project path: %s is not a directory", path)
	}
	if !IsRepository(path) {
		return fmt.Errorf("%w: %s", ErrNotARepository, path)
	}

	c.mu.Lock()
	c.projectPath = path
	sessionID := c.sessionID
	c.mu.Unlock()

	if sessionID != "" {
		if _, err := c.audit.AppendAction(sessionID, models.ActionSetProjectPath,
			map[string]string{"project_path": path},
			models.ActionResult{Success: true}); err != nil {
			c.logEvent("ERROR", "project.changed", "recording project change failed", map[string]any{
				"error": err.Error(),
			})
		}
	}

	c.logEvent("INFO", "project.changed", "active project changed", map[string]any{
		"project_path": path,
	})

	for _, sub := range c.subscribers {
		if err := sub.SetProjectPath(path); err != nil {
			c.logEvent("WARN", "project.changed", "project path notification failed", map[string]any{
				"error": err.Error(),
			})
		}
	}
	return nil
}

// InitRepository bootstraps dir as a repository with an authenticated
// remote: init, identity configuration, an initial commit of everything, and
// a first push with upstream tracking. It fails if the directory is already
// a repository. On success dir becomes the active project.
func (c *LifecycleController) InitRepository(ctx context.Context, dir, remoteURL, branch string) error {
	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("initializing repository: %s is not a directory", dir)
	}
	if IsRepository(dir) {
		return fmt.Errorf("%w: %s", ErrAlreadyRepository, dir)
	}
	if branch == "" {
		branch = "main"
	}

	if err := c.runInit(ctx, dir, remoteURL, branch); err != nil {
		c.recordInit(sessionID, dir, remoteURL, branch, err)
		return err
	}
	c.recordInit(sessionID, dir, remoteURL, branch, nil)

	c.logEvent("INFO", "repo.initialized", "repository initialized", map[string]any{
		"project_path": dir,
		"branch":       branch,
	})

	// The directory is a repository now, so it can become the active
	// project.
	if err := c.SetProjectPath(dir); err != nil {
		c.logEvent("WARN", "repo.initialized", "adopting initialized repository failed", map[string]any{
			"error": err.Error(),
		})
	}
	return nil
}

func (c *LifecycleController) runInit(ctx context.Context, dir, remoteURL, branch string) error {
	if _, err := c.runner.Run(ctx, dir, "init"); err != nil {
		return fmt.Errorf("initializing repository: %w", err)
	}

	if c.creds.HasIdentity() {
		if _, err := c.runner.Run(ctx, dir, "config", "user.name", c.creds.Username); err != nil {
			return fmt.Errorf("configuring identity: %w", err)
		}
		if _, err := c.runner.Run(ctx, dir, "config", "user.email", c.creds.Email); err != nil {
			return fmt.Errorf("configuring identity: %w", err)
		}
	}
	if _, err := c.runner.Run(ctx, dir, "config", "credential.helper", "cache --timeout=3600"); err != nil {
		return fmt.Errorf("configuring credential helper: %w", err)
	}

	if _, err := c.runner.Run(ctx, dir, "add", "-A"); err != nil {
		return fmt.Errorf("staging initial files: %w", err)
	}
	if _, err := c.runner.Run(ctx, dir, "commit", "-m", "Initial commit"); err != nil {
		if !isNothingToCommit(err) {
			return fmt.Errorf("creating initial commit: %w", err)
		}
	}

	authURL := integration.AuthenticatedRemoteURL(remoteURL, c.creds.Token)
	if authURL == remoteURL && c.creds.Token == "" {
		c.logEvent("WARN", "repo.initialized", "no token configured, remote added without credentials", nil)
	}
	if _, err := c.runner.Run(ctx, dir, "remote", "add", "origin", authURL); err != nil {
		return fmt.Errorf("adding remote: %w", err)
	}
	if _, err := c.runner.Run(ctx, dir, "branch", "-M", branch); err != nil {
		return fmt.Errorf("renaming branch: %w", err)
	}
	if _, err := c.runner.Run(ctx, dir, "push", "-u", "origin", branch); err != nil {
		return fmt.Errorf("pushing initial commit: %w", err)
	}
	return nil
}

func (c *LifecycleController) recordInit(sessionID, dir, remoteURL, branch string, cause error) {
	if sessionID == "" {
		return
	}

	result := models.ActionResult{Success: cause == nil}
	if cause != nil {
		result.Error = cause.Error()
	}
	if _, err := c.audit.AppendAction(sessionID, models.ActionInitRepository,
		map[string]string{
			"project_path": dir,
			"remote_url":   remoteURL,
			"branch":       branch,
		}, result); err != nil {
		c.logEvent("ERROR", "repo.initialized", "recording init action failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// Running reports whether the controller has been started.
func (c *LifecycleController) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// ProjectPath returns the active project directory, or empty when unset.
func (c *LifecycleController) ProjectPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectPath
}

// SessionID returns the open session's ID, or empty when stopped.
func (c *LifecycleController) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// timerLoop drives unattended cycles. A tick only syncs when a project is
// active; the engine's own mutex keeps a tick from overlapping a
// caller-triggered cycle.
func (c *LifecycleController) timerLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			running, sessionID, projectPath := c.running, c.sessionID, c.projectPath
			c.mu.Unlock()

			if !running || projectPath == "" {
				continue
			}
			// The engine records the cycle's own failure events and action.
			_, _ = c.engine.SyncCycle(context.Background(), projectPath, models.ActionAutoSync, sessionID)
		}
	}
}

// warnMissingCredentials logs one warning per absent credential capability.
func (c *LifecycleController) warnMissingCredentials() {
	if !c.creds.HasIdentity() {
		c.logEvent("WARN", "engine.credentials_missing", "GIT_USERNAME/GIT_EMAIL not set, commit authorship falls back to repository config", nil)
	}
	if c.creds.Token == "" {
		c.logEvent("WARN", "engine.credentials_missing", "GIT_TOKEN not set, remote URLs will not be authenticated", nil)
	}
}

func (c *LifecycleController) logEvent(level, eventType, message string, data map[string]any) {
	if c.events == nil {
		return
	}
	_ = c.events.LogEvent(level, eventType, message, data)
}
