package cli

import (
	"github.com/valter-silva-au/reposyncd/internal/core"
	"github.com/valter-silva-au/reposyncd/internal/observability"
	"github.com/valter-silva-au/reposyncd/internal/storage"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath string
	Config   *models.GlobalConfig

	ConfigMgr  core.ConfigurationManager
	Controller *core.LifecycleController
	AuditLog   storage.AuditLogManager

	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Reporter    observability.Reporter
)
