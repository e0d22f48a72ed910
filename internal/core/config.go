package core

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/reposyncd/pkg/models"
)

// configFileName is the workspace configuration file read from the base path.
const configFileName = ".syncconfig"

// ConfigurationManager defines the interface for loading and updating the
// workspace configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	SaveProjectPath(path string) error
}

// viperConfigManager implements ConfigurationManager using Viper for reading
// the YAML configuration file and binding GIT_* environment variables.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// defaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func defaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		AgentID:        "default",
		DefaultBranch:  "main",
		SyncInterval:   DefaultSyncInterval,
		CommandTimeout: 2 * time.Minute,
		PushRetryLimit: 3,
	}
}

// newViper builds a Viper instance bound to the config file and environment.
func (cm *viperConfigManager) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Credentials come from the environment first, the file second. All are
	// optional; each absence degrades one capability with a warning at
	// engine start rather than failing here.
	_ = v.BindEnv("git.username", "GIT_USERNAME")
	_ = v.BindEnv("git.email", "GIT_EMAIL")
	_ = v.BindEnv("git.token", "GIT_TOKEN")

	return v
}

// LoadGlobalConfig reads the .syncconfig file from the base path using Viper.
// A missing file returns defaults; credentials still come from the
// environment in that case.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := defaultGlobalConfig()

	v := cm.newViper()
	v.SetDefault("agent_id", cfg.AgentID)
	v.SetDefault("project_path", "")
	v.SetDefault("default_branch", cfg.DefaultBranch)
	v.SetDefault("sync.interval", cfg.SyncInterval.String())
	v.SetDefault("sync.command_timeout", cfg.CommandTimeout.String())
	v.SetDefault("sync.push_retry_limit", cfg.PushRetryLimit)
	v.SetDefault("notifications.enabled", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", configFileName, err)
		}
	}

	cfg.AgentID = v.GetString("agent_id")
	cfg.ProjectPath = v.GetString("project_path")
	cfg.DefaultBranch = v.GetString("default_branch")
	cfg.PushRetryLimit = v.GetInt("sync.push_retry_limit")

	interval, err := time.ParseDuration(v.GetString("sync.interval"))
	if err != nil {
		return nil, fmt.Errorf("parsing sync.interval: %w", err)
	}
	cfg.SyncInterval = interval

	timeout, err := time.ParseDuration(v.GetString("sync.command_timeout"))
	if err != nil {
		return nil, fmt.Errorf("parsing sync.command_timeout: %w", err)
	}
	cfg.CommandTimeout = timeout

	cfg.Git = models.GitCredentials{
		Username: v.GetString("git.username"),
		Email:    v.GetString("git.email"),
		Token:    v.GetString("git.token"),
	}

	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Slack.WebhookURL = v.GetString("notifications.slack.webhook_url")

	cfg.Alerts = models.AlertConfig{
		ConflictRepeats:     v.GetInt("alerts.conflict_repeats"),
		ConsecutiveFailures: v.GetInt("alerts.consecutive_failures"),
		StaleSyncHours:      v.GetInt("alerts.stale_sync_hours"),
	}

	return cfg, nil
}

// SaveProjectPath persists the active project path back to the config file
// so later invocations and the daemon pick it up. Environment-sourced
// credentials are deliberately not bound here so they never end up written
// to disk.
func (cm *viperConfigManager) SaveProjectPath(path string) error {
	v := viper.New()
	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("reading %s: %w", configFileName, err)
		}
	}

	v.Set("project_path", path)
	target := filepath.Join(cm.basePath, configFileName+".yaml")
	if file := v.ConfigFileUsed(); file != "" {
		target = file
	}
	if err := v.WriteConfigAs(target); err != nil {
		return fmt.Errorf("writing %s: %w", configFileName, err)
	}
	return nil
}
