package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the project configuration file Load looks for.
const ConfigFileName = "gantry.yaml"

// AgentsDir holds the per-agent-type definition files.
const AgentsDir = "agents"

// Load loads the main project configuration from dir. A missing file
// yields the default configuration rather than an error.
func Load(dir string) (*Config, error) {
	configFile := filepath.Join(dir, ConfigFileName)

	content, err := os.ReadFile(configFile)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.BaseDir = dir
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Interpolate environment variables
	content = []byte(interpolateEnv(string(content)))

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.BaseDir = dir

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration, the same one Load yields
// when no gantry.yaml exists.
func Default() *Config {
	cfg := defaultConfig()
	cfg.BaseDir = "."
	return cfg
}

// LoadAgent loads one agent type definition from dir/agents/<name>.yaml
// (or .yml).
func LoadAgent(dir, name string) (*AgentConfig, error) {
	agentFile := filepath.Join(dir, AgentsDir, name+".yaml")
	if _, err := os.Stat(agentFile); os.IsNotExist(err) {
		agentFile = filepath.Join(dir, AgentsDir, name+".yml")
	}

	content, err := os.ReadFile(agentFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent file: %w", err)
	}

	content = []byte(interpolateEnv(string(content)))

	var cfg AgentConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agent config: %w", err)
	}

	if cfg.Name == "" {
		cfg.Name = name
	}
	if err := validateAgent(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadAgents loads every agent definition under dir/agents, sorted by
// name. A missing agents directory yields an empty list.
func LoadAgents(dir string) ([]*AgentConfig, error) {
	names, err := ListAgents(dir)
	if err != nil {
		return nil, err
	}

	agents := make([]*AgentConfig, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		cfg, err := LoadAgent(dir, name)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", name, err)
		}
		if prev, dup := seen[cfg.Name]; dup {
			return nil, fmt.Errorf("agent name %q defined by both %s and %s", cfg.Name, prev, name)
		}
		seen[cfg.Name] = name
		agents = append(agents, cfg)
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents, nil
}

// interpolateEnv replaces ${env.VAR} and ${VAR} with environment values
func interpolateEnv(content string) string {
	// Match ${env.VAR} pattern
	envPattern := regexp.MustCompile(`\$\{env\.([^}]+)\}`)
	content = envPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // keep original if not found
	})

	// Match ${VAR} pattern
	varPattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	content = varPattern.ReplaceAllStringFunc(content, func(match string) string {
		varName := varPattern.FindStringSubmatch(match)[1]
		if strings.HasPrefix(varName, "env.") {
			return match
		}
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match
	})

	return content
}

func defaultConfig() *Config {
	cfg := &Config{
		Name:    "gantry-project",
		Version: "1.0",
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Name == "" {
		cfg.Name = "gantry-project"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Limits.MaxSessions == 0 {
		cfg.Limits.MaxSessions = 10
	}
	if cfg.Limits.MaxConcurrentTasks == 0 {
		cfg.Limits.MaxConcurrentTasks = 5
	}
	if cfg.Events.HistorySize == 0 {
		cfg.Events.HistorySize = 1000
	}
	if cfg.Archive.Driver == "" {
		cfg.Archive.Driver = "sqlite"
	}
	if cfg.Archive.Driver == "sqlite" && cfg.Archive.Path == "" {
		cfg.Archive.Path = ".gantry/archive.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "echo"
	}
}
