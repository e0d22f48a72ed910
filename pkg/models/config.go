package models

import "time"

// GitCredentials holds the identity and token used for authenticated git
// operations. All fields are optional; each absence degrades one capability
// (commit authorship, authenticated push) rather than aborting startup.
type GitCredentials struct {
	Username string `yaml:"username" mapstructure:"username"`
	Email    string `yaml:"email" mapstructure:"email"`
	Token    string `yaml:"token" mapstructure:"token"`
}

// HasIdentity reports whether both username and email are configured.
func (c GitCredentials) HasIdentity() bool {
	return c.Username != "" && c.Email != ""
}

// SlackConfig holds the Slack webhook settings for conflict reporting.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// NotificationConfig controls the external conflict/failure reporter.
type NotificationConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Slack   SlackConfig `yaml:"slack" mapstructure:"slack"`
}

// AlertConfig overrides the alert engine thresholds. Zero values fall back
// to defaults.
type AlertConfig struct {
	ConflictRepeats     int `yaml:"conflict_repeats" mapstructure:"conflict_repeats"`
	ConsecutiveFailures int `yaml:"consecutive_failures" mapstructure:"consecutive_failures"`
	StaleSyncHours      int `yaml:"stale_sync_hours" mapstructure:"stale_sync_hours"`
}

// GlobalConfig holds system-wide settings read from .syncconfig via Viper,
// with Git credentials overridable through GIT_USERNAME, GIT_EMAIL and
// GIT_TOKEN environment variables.
type GlobalConfig struct {
	AgentID        string             `yaml:"agent_id" mapstructure:"agent_id"`
	ProjectPath    string             `yaml:"project_path" mapstructure:"project_path"`
	DefaultBranch  string             `yaml:"default_branch" mapstructure:"default_branch"`
	SyncInterval   time.Duration      `yaml:"sync_interval" mapstructure:"sync_interval"`
	CommandTimeout time.Duration      `yaml:"command_timeout" mapstructure:"command_timeout"`
	PushRetryLimit int                `yaml:"push_retry_limit" mapstructure:"push_retry_limit"`
	Git            GitCredentials     `yaml:"git" mapstructure:"git"`
	Notifications  NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Alerts         AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
}
