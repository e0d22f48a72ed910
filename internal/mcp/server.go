// Package mcp provides an MCP (Model Context Protocol) server that exposes
// reposyncd's sync operations as tools for AI coding assistants, taking the
// place of direct HTTP callers.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/reposyncd/internal/core"
	"github.com/valter-silva-au/reposyncd/internal/observability"
	"github.com/valter-silva-au/reposyncd/internal/storage"
)

// Server wraps reposyncd services and exposes them as MCP tools.
type Server struct {
	server      *gomcp.Server
	controller  *core.LifecycleController
	audit       storage.AuditLogManager
	metricsCalc observability.MetricsCalculator
	alertEngine observability.AlertEngine
}

// NewServer creates a new MCP server with the given service dependencies.
// metricsCalc and alertEngine may be nil if observability is disabled.
func NewServer(controller *core.LifecycleController, audit storage.AuditLogManager, metricsCalc observability.MetricsCalculator, alertEngine observability.AlertEngine, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		controller:  controller,
		audit:       audit,
		metricsCalc: metricsCalc,
		alertEngine: alertEngine,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "reposyncd", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type syncRepositoryInput struct{}

type syncRepositoryOutput struct {
	Success       bool   `json:"success"`
	HasChanges    bool   `json:"has_changes"`
	FilesChanged  int    `json:"files_changed,omitempty"`
	CommitMessage string `json:"commit_message,omitempty"`
	PushRetries   int    `json:"push_retries,omitempty"`
}

type setProjectPathInput struct {
	Path string `json:"path" jsonschema:"required,absolute path of the project directory to synchronize"`
}

type setProjectPathOutput struct {
	Message string `json:"message"`
}

type getSyncStatusInput struct{}

type syncStatusOutput struct {
	Running     bool   `json:"running"`
	ProjectPath string `json:"project_path,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

type getSyncHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of sessions to return, newest first. Defaults to 10."`
}

type actionOutput struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Params    map[string]string `json:"params,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Files     []string          `json:"conflicted_files,omitempty"`
	Timestamp string            `json:"timestamp"`
}

type sessionOutput struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	StartTime string         `json:"start_time"`
	EndTime   string         `json:"end_time,omitempty"`
	Actions   []actionOutput `json:"actions"`
}

type getSyncHistoryOutput struct {
	Sessions []sessionOutput `json:"sessions"`
	Count    int             `json:"count"`
}

type getPriorConflictsInput struct {
	Files []string `json:"files" jsonschema:"required,file paths to look up past merge conflicts for"`
}

type priorConflictOutput struct {
	SessionID string   `json:"session_id"`
	Timestamp string   `json:"timestamp"`
	Files     []string `json:"files"`
}

type getPriorConflictsOutput struct {
	Matches []priorConflictOutput `json:"matches"`
	Count   int                   `json:"count"`
}

type getMetricsInput struct {
	Since string `json:"since,omitempty" jsonschema:"time window for metrics (e.g. 7d, 30d, 24h). Defaults to 7d."`
}

type metricsOutput struct {
	CyclesCompleted int    `json:"cycles_completed"`
	CyclesFailed    int    `json:"cycles_failed"`
	Conflicts       int    `json:"conflicts"`
	FilesChanged    int    `json:"files_changed"`
	PushRetries     int    `json:"push_retries"`
	EventCount      int    `json:"event_count"`
	OldestEvent     string `json:"oldest_event,omitempty"`
	NewestEvent     string `json:"newest_event,omitempty"`
}

type getAlertsInput struct{}

type alertOutput struct {
	ID          string `json:"id"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	TriggeredAt string `json:"triggered_at"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "sync_repository",
		Description: "Run one full sync cycle (pull, stage, commit, push) against the active project. Fails when no project is set.",
	}, s.handleSyncRepository)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_project_path",
		Description: "Set the active project directory to synchronize. The directory must exist and be a git repository.",
	}, s.handleSetProjectPath)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_sync_status",
		Description: "Get the engine state: whether it is running, the active project, and the open session ID.",
	}, s.handleGetSyncStatus)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_sync_history",
		Description: "List recorded sync sessions and their actions from the audit log, newest first.",
	}, s.handleGetSyncHistory)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_prior_conflicts",
		Description: "Look up past merge conflicts touching the given file paths across all recorded sessions.",
	}, s.handleGetPriorConflicts)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get aggregated sync metrics from the event log: cycle counts, conflicts, files changed, push retries.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "Evaluate and return active alerts (recurring conflicts, consecutive failures, stale sync).",
	}, s.handleGetAlerts)
}

// --- Tool handlers ---

func (s *Server) handleSyncRepository(ctx context.Context, _ *gomcp.CallToolRequest, _ syncRepositoryInput) (*gomcp.CallToolResult, syncRepositoryOutput, error) {
	outcome, err := s.controller.SyncRepository(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("syncing repository: %s", err)), syncRepositoryOutput{}, nil
	}

	return nil, syncRepositoryOutput{
		Success:       outcome.Success,
		HasChanges:    outcome.HasChanges,
		FilesChanged:  outcome.FilesChanged,
		CommitMessage: outcome.CommitMessage,
		PushRetries:   outcome.PushRetries,
	}, nil
}

func (s *Server) handleSetProjectPath(_ context.Context, _ *gomcp.CallToolRequest, input setProjectPathInput) (*gomcp.CallToolResult, setProjectPathOutput, error) {
	if input.Path == "" {
		return errorResult("path is required"), setProjectPathOutput{}, nil
	}

	if err := s.controller.SetProjectPath(input.Path); err != nil {
		return errorResult(fmt.Sprintf("setting project path: %s", err)), setProjectPathOutput{}, nil
	}

	return nil, setProjectPathOutput{
		Message: fmt.Sprintf("active project set to %s", input.Path),
	}, nil
}

func (s *Server) handleGetSyncStatus(_ context.Context, _ *gomcp.CallToolRequest, _ getSyncStatusInput) (*gomcp.CallToolResult, syncStatusOutput, error) {
	return nil, syncStatusOutput{
		Running:     s.controller.Running(),
		ProjectPath: s.controller.ProjectPath(),
		SessionID:   s.controller.SessionID(),
	}, nil
}

func (s *Server) handleGetSyncHistory(_ context.Context, _ *gomcp.CallToolRequest, input getSyncHistoryInput) (*gomcp.CallToolResult, getSyncHistoryOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	sessions := s.audit.Sessions()

	// Newest first.
	out := getSyncHistoryOutput{}
	for i := len(sessions) - 1; i >= 0 && len(out.Sessions) < limit; i-- {
		session := sessions[i]
		so := sessionOutput{
			ID:        session.ID,
			Status:    string(session.Status),
			StartTime: session.StartTime.Format(time.RFC3339),
		}
		if session.EndTime != nil {
			so.EndTime = session.EndTime.Format(time.RFC3339)
		}
		for _, action := range session.Actions {
			so.Actions = append(so.Actions, actionOutput{
				ID:        action.ID,
				Type:      string(action.Type),
				Params:    action.Parameters,
				Success:   action.Result.Success,
				Error:     action.Result.Error,
				Files:     action.Result.ConflictedFiles,
				Timestamp: action.Timestamp.Format(time.RFC3339),
			})
		}
		out.Sessions = append(out.Sessions, so)
	}
	out.Count = len(out.Sessions)

	return nil, out, nil
}

func (s *Server) handleGetPriorConflicts(_ context.Context, _ *gomcp.CallToolRequest, input getPriorConflictsInput) (*gomcp.CallToolResult, getPriorConflictsOutput, error) {
	if len(input.Files) == 0 {
		return errorResult("files is required"), getPriorConflictsOutput{}, nil
	}

	matches, err := s.audit.FindConflictsTouching(input.Files)
	if err != nil {
		return errorResult(fmt.Sprintf("looking up conflicts: %s", err)), getPriorConflictsOutput{}, nil
	}

	out := getPriorConflictsOutput{Count: len(matches)}
	for _, m := range matches {
		out.Matches = append(out.Matches, priorConflictOutput{
			SessionID: m.SessionID,
			Timestamp: m.Timestamp.Format(time.RFC3339),
			Files:     m.Files,
		})
	}
	return nil, out, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, input getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	if s.metricsCalc == nil {
		return errorResult("metrics calculator not available (observability may be disabled)"), metricsOutput{}, nil
	}

	sinceStr := input.Since
	if sinceStr == "" {
		sinceStr = "7d"
	}

	sinceTime, err := parseSince(sinceStr)
	if err != nil {
		return errorResult(fmt.Sprintf("parsing since duration: %s", err)), metricsOutput{}, nil
	}

	metrics, err := s.metricsCalc.Calculate(sinceTime)
	if err != nil {
		return errorResult(fmt.Sprintf("calculating metrics: %s", err)), metricsOutput{}, nil
	}

	out := metricsOutput{
		CyclesCompleted: metrics.CyclesCompleted,
		CyclesFailed:    metrics.CyclesFailed,
		Conflicts:       metrics.Conflicts,
		FilesChanged:    metrics.FilesChanged,
		PushRetries:     metrics.PushRetries,
		EventCount:      metrics.EventCount,
	}
	if metrics.OldestEvent != nil {
		out.OldestEvent = metrics.OldestEvent.Format(time.RFC3339)
	}
	if metrics.NewestEvent != nil {
		out.NewestEvent = metrics.NewestEvent.Format(time.RFC3339)
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, _ getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	if s.alertEngine == nil {
		return errorResult("alert engine not available (observability may be disabled)"), getAlertsOutput{}, nil
	}

	alerts, err := s.alertEngine.Evaluate()
	if err != nil {
		return errorResult(fmt.Sprintf("evaluating alerts: %s", err)), getAlertsOutput{}, nil
	}

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:          a.ID,
			Condition:   a.Condition,
			Severity:    string(a.Severity),
			Message:     a.Message,
			TriggeredAt: a.TriggeredAt.Format(time.RFC3339),
		}
	}

	return nil, out, nil
}

// --- Helpers ---

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}

// parseSince parses a human-friendly duration string like "7d", "30d", or
// "24h" into the corresponding time in the past.
func parseSince(s string) (time.Time, error) {
	now := time.Now().UTC()

	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}

	suffix := s[len(s)-1]
	numStr := s[:len(s)-1]
	var num int
	if _, err := fmt.Sscanf(numStr, "%d", &num); err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q: %w", s, err)
	}

	switch suffix {
	case 'd':
		return now.AddDate(0, 0, -num), nil
	case 'h':
		return now.Add(-time.Duration(num) * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("unsupported duration suffix %q (use d or h)", string(suffix))
	}
}
