// Package internal provides the App struct that wires all components of the
// reposyncd system together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/reposyncd/internal/cli"
	"github.com/valter-silva-au/reposyncd/internal/core"
	"github.com/valter-silva-au/reposyncd/internal/integration"
	"github.com/valter-silva-au/reposyncd/internal/observability"
	"github.com/valter-silva-au/reposyncd/internal/storage"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// App holds all service dependencies for the reposyncd system.
type App struct {
	BasePath string
	Config   *models.GlobalConfig

	// Configuration
	ConfigMgr core.ConfigurationManager

	// Storage layer
	AuditLog storage.AuditLogManager

	// Integration services
	Runner integration.GitRunner

	// Core services
	Engine     *core.SyncEngine
	Controller *core.LifecycleController

	// Observability
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Reporter    observability.Reporter
}

// NewApp creates and wires all components of the reposyncd system.
// basePath is the root directory where all state is stored (typically the
// directory containing .syncconfig).
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		// Use defaults if config file is missing or unreadable.
		globalCfg = &models.GlobalConfig{
			AgentID:        "default",
			DefaultBranch:  "main",
			SyncInterval:   core.DefaultSyncInterval,
			CommandTimeout: 2 * time.Minute,
			PushRetryLimit: 3,
		}
	}
	app.Config = globalCfg

	// --- Storage layer ---
	app.AuditLog = storage.NewAuditLogManager(basePath, globalCfg.AgentID)
	_ = app.AuditLog.Load() // Non-fatal: empty log on first use.

	// --- Integration services ---
	app.Runner = integration.NewGitRunner("git", globalCfg.CommandTimeout)

	// --- Observability ---
	eventLogPath := filepath.Join(basePath, ".reposyncd_events.jsonl")
	app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
	if err != nil {
		// Non-fatal: disable observability if log can't be created.
		app.EventLog = nil
	}
	if app.EventLog != nil {
		thresholds := observability.DefaultAlertThresholds()
		if globalCfg.Alerts.ConflictRepeats > 0 {
			thresholds.ConflictRepeats = globalCfg.Alerts.ConflictRepeats
		}
		if globalCfg.Alerts.ConsecutiveFailures > 0 {
			thresholds.ConsecutiveFailures = globalCfg.Alerts.ConsecutiveFailures
		}
		if globalCfg.Alerts.StaleSyncHours > 0 {
			thresholds.StaleSyncHours = globalCfg.Alerts.StaleSyncHours
		}
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, thresholds)
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if globalCfg.Notifications.Enabled && globalCfg.Notifications.Slack.WebhookURL != "" {
		app.Reporter = observability.NewSlackReporter(globalCfg.Notifications.Slack.WebhookURL)
	}

	// --- Core services ---
	var evtAdapter core.EventLogger
	if app.EventLog != nil {
		evtAdapter = &eventLogAdapter{log: app.EventLog}
	}
	var repAdapter core.ConflictReporter
	if app.Reporter != nil {
		repAdapter = &reporterAdapter{reporter: app.Reporter}
	}

	app.Engine = core.NewSyncEngine(app.Runner, app.AuditLog, repAdapter, evtAdapter, globalCfg.PushRetryLimit)
	app.Controller = core.NewLifecycleController(app.Engine, app.Runner, app.AuditLog, evtAdapter, globalCfg.Git, globalCfg.SyncInterval)

	if globalCfg.ProjectPath != "" {
		// Best-effort: a stale configured path must not prevent startup.
		_ = app.Controller.SetProjectPath(globalCfg.ProjectPath)
	}

	// Persist later project changes back to .syncconfig so one-shot
	// invocations and the daemon agree on the active project.
	app.Controller.Subscribe(&projectPersistAdapter{cfg: app.ConfigMgr})

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = globalCfg
	cli.ConfigMgr = app.ConfigMgr
	cli.Controller = app.Controller
	cli.AuditLog = app.AuditLog

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Reporter = app.Reporter

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the reposyncd state directory.
// It checks the REPOSYNCD_HOME env var, then walks up from the current
// directory looking for a .syncconfig file.
func ResolveBasePath() string {
	if home := os.Getenv("REPOSYNCD_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".syncconfig")); err == nil {
			return dir
		}
		if _, err := os.Stat(filepath.Join(dir, ".syncconfig.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	// Fall back to cwd.
	cwd, _ := os.Getwd()
	return cwd
}

// --- Adapters ---

// eventLogAdapter adapts observability.EventLog to core.EventLogger.
type eventLogAdapter struct {
	log observability.EventLog
}

func (a *eventLogAdapter) LogEvent(level, eventType, message string, data map[string]any) error {
	return a.log.Write(observability.Event{
		Time:    time.Now().UTC(),
		Level:   level,
		Type:    eventType,
		Message: message,
		Data:    data,
	})
}

// reporterAdapter adapts observability.Reporter to core.ConflictReporter.
type reporterAdapter struct {
	reporter observability.Reporter
}

func (a *reporterAdapter) Report(event core.ReporterEvent) error {
	return a.reporter.Report(observability.ReportEvent{
		Type:            event.Type,
		ProjectPath:     event.ProjectPath,
		Error:           event.Error,
		Timestamp:       event.Timestamp,
		ConflictedFiles: event.ConflictedFiles,
		PriorConflicts:  event.PriorConflicts,
	})
}

// projectPersistAdapter adapts core.ConfigurationManager to
// core.ProjectPathSubscriber so project changes survive process restarts.
type projectPersistAdapter struct {
	cfg core.ConfigurationManager
}

func (a *projectPersistAdapter) SetProjectPath(path string) error {
	return a.cfg.SaveProjectPath(path)
}
