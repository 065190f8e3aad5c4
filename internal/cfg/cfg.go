package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config adds intake-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	ConfigPath            string
	ActiveIndustry        string
	WatchConfig           bool
	AdminAPIToken         string
	ClaudeAPIKey          string
	ClaudeModel           string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.ConfigPath, "config-path", "", "directory holding taxonomy.json, severity.yaml, routing.json (empty = configs/<active-industry>)")
	fs.StringVar(&c.ActiveIndustry, "active-industry", "healthcare", "industry rule set to load when config-path is empty")
	fs.BoolVar(&c.WatchConfig, "watch-config", false, "reload configuration automatically when rule files change on disk")
	fs.StringVar(&c.AdminAPIToken, "admin-api-token", "", "bearer token required by the admin reload endpoint")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude fallback classifier (empty = keyword-only)")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model for the fallback classifier")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Either an explicit rule directory or an industry to resolve one from
	if c.ConfigPath == "" && c.ActiveIndustry == "" {
		errs = append(errs, errors.New("one of CONFIG_PATH or ACTIVE_INDUSTRY is required"))
	}

	// Admin endpoints are always registered, so their token is mandatory
	if c.AdminAPIToken == "" {
		errs = append(errs, errors.New("ADMIN_API_TOKEN is required"))
	}

	// Model only matters when the classifier is enabled
	if c.ClaudeAPIKey != "" && c.ClaudeModel == "" {
		errs = append(errs, errors.New("CLAUDE_MODEL is required when CLAUDE_API_KEY is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
