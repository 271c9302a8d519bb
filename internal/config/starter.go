package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const starterConfig = `name: my-assistant
version: "1.0"

server:
  host: localhost
  port: 8080

limits:
  max_sessions: 10
  max_concurrent_tasks: 5

events:
  history_size: 1000

archive:
  driver: sqlite
  path: .gantry/archive.db

logging:
  level: info
  format: text

provider:
  name: echo

webhooks:
  enabled: false
  hooks: []
`

const starterAgent = `name: general-purpose
description: General-purpose agent for research and multi-step work
prompt: |
  You are a capable general-purpose assistant. Break the request into
  steps, work through them, and report the outcome concisely.
`

// WriteStarter scaffolds a new project in dir: a gantry.yaml and an
// agents/ directory with the general-purpose definition. Existing
// files are left alone so re-running init is safe.
func WriteStarter(dir string) error {
	if err := os.MkdirAll(filepath.Join(dir, AgentsDir), 0o755); err != nil {
		return fmt.Errorf("failed to create agents dir: %w", err)
	}

	files := map[string]string{
		filepath.Join(dir, ConfigFileName):                    starterConfig,
		filepath.Join(dir, AgentsDir, "general-purpose.yaml"): starterAgent,
	}

	for path, content := range files {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	return nil
}
