package config

// Config represents the main project configuration (gantry.yaml)
type Config struct {
	Name     string         `yaml:"name" json:"name"`
	Version  string         `yaml:"version" json:"version"`
	Server   ServerConfig   `yaml:"server" json:"server"`
	Limits   LimitsConfig   `yaml:"limits" json:"limits"`
	Events   EventsConfig   `yaml:"events" json:"events"`
	Archive  ArchiveConfig  `yaml:"archive" json:"archive"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Webhooks WebhooksConfig `yaml:"webhooks" json:"webhooks"`

	// BaseDir is the directory the config was loaded from; agent
	// definitions and relative paths resolve against it.
	BaseDir string `yaml:"-" json:"-"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// LimitsConfig bounds concurrent work
type LimitsConfig struct {
	MaxSessions        int `yaml:"max_sessions" json:"max_sessions"`
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
}

// EventsConfig configures the in-process event bus
type EventsConfig struct {
	HistorySize int `yaml:"history_size" json:"history_size"`
}

// ArchiveConfig configures the durable event archive
type ArchiveConfig struct {
	Driver string `yaml:"driver" json:"driver"` // memory, sqlite, off
	Path   string `yaml:"path" json:"path"`     // file path for sqlite
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // text, json
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

// MetricsConfig configures metrics export
type MetricsConfig struct {
	ExportPath string `yaml:"export_path" json:"export_path"` // JSONL file, empty disables export
}

// ProviderConfig selects the turn runner
type ProviderConfig struct {
	Name  string `yaml:"name" json:"name"` // echo is the built-in development runner
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
}

// WebhooksConfig configures outbound event webhooks
type WebhooksConfig struct {
	Enabled bool            `yaml:"enabled" json:"enabled"`
	Hooks   []WebhookConfig `yaml:"hooks" json:"hooks"`
}

// WebhookConfig defines a single webhook subscription. Events lists
// the event types to deliver (empty matches all), Timeout is a
// duration string like "5s", and Blocking delivers on the emitter's
// goroutine instead of in the background.
type WebhookConfig struct {
	Name     string   `yaml:"name" json:"name"`
	URL      string   `yaml:"url" json:"url"`
	Events   []string `yaml:"events" json:"events"`
	Timeout  string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Blocking bool     `yaml:"blocking,omitempty" json:"blocking,omitempty"`
}

// AgentConfig represents an agent type definition (agents/<name>.yaml)
type AgentConfig struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Prompt      string   `yaml:"prompt,omitempty" json:"prompt,omitempty"`
	Tools       []string `yaml:"tools,omitempty" json:"tools,omitempty"`
	Model       string   `yaml:"model,omitempty" json:"model,omitempty"` // model override hint for the runner
}
