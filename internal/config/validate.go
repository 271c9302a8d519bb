package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gantry-oss/gantry/internal/errors"
)

var validArchiveDrivers = map[string]bool{
	"memory": true,
	"sqlite": true,
	"off":    true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// Validate checks a loaded project configuration. It collects every
// problem so a broken file is reported in one pass.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port must be 1-65535, got %d", cfg.Server.Port))
	}
	if cfg.Limits.MaxSessions < 1 {
		problems = append(problems, fmt.Sprintf("limits.max_sessions must be >= 1, got %d", cfg.Limits.MaxSessions))
	}
	if cfg.Limits.MaxConcurrentTasks < 1 {
		problems = append(problems, fmt.Sprintf("limits.max_concurrent_tasks must be >= 1, got %d", cfg.Limits.MaxConcurrentTasks))
	}
	if cfg.Events.HistorySize < 1 {
		problems = append(problems, fmt.Sprintf("events.history_size must be >= 1, got %d", cfg.Events.HistorySize))
	}
	if !validArchiveDrivers[cfg.Archive.Driver] {
		problems = append(problems, fmt.Sprintf("archive.driver must be memory, sqlite, or off, got %q", cfg.Archive.Driver))
	}
	if cfg.Archive.Driver == "sqlite" && cfg.Archive.Path == "" {
		problems = append(problems, "archive.path is required for the sqlite driver")
	}
	if !validLogLevels[cfg.Logging.Level] {
		problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", cfg.Logging.Level))
	}
	if !validLogFormats[cfg.Logging.Format] {
		problems = append(problems, fmt.Sprintf("logging.format must be text or json, got %q", cfg.Logging.Format))
	}

	for i, hook := range cfg.Webhooks.Hooks {
		if hook.Name == "" {
			problems = append(problems, fmt.Sprintf("webhooks.hooks[%d].name is required", i))
		}
		if hook.URL == "" {
			problems = append(problems, fmt.Sprintf("webhooks.hooks[%d].url is required", i))
		}
		if hook.Timeout != "" {
			if _, err := time.ParseDuration(hook.Timeout); err != nil {
				problems = append(problems, fmt.Sprintf("webhooks.hooks[%d].timeout is not a duration: %q", i, hook.Timeout))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf(errors.CodeConfigInvalid,
			"config validation failed: %s", strings.Join(problems, "; ")).
			WithSuggestion("Fix " + ConfigFileName + " and run 'gantry config validate'")
	}
	return nil
}

// validateAgent checks a single agent type definition.
func validateAgent(cfg *AgentConfig) error {
	var problems []string

	if cfg.Name == "" {
		problems = append(problems, "name is required")
	}
	if strings.ContainsAny(cfg.Name, " \t\n") {
		problems = append(problems, fmt.Sprintf("name %q must not contain whitespace", cfg.Name))
	}
	if cfg.Description == "" {
		problems = append(problems, "description is required")
	}

	if len(problems) > 0 {
		return errors.Newf(errors.CodeConfigInvalid,
			"agent validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
