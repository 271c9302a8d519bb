package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/agent"
	"github.com/gantry-oss/gantry/internal/config"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List available agent types",
	Long: `List the agent types the runtime would load: the built-in
general-purpose agent plus any definitions under the agents directory.`,
	RunE: runAgents,
}

func runAgents(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	defs, err := config.LoadAgents(cfg.BaseDir)
	if err != nil {
		return fmt.Errorf("failed to load agent definitions: %w", err)
	}

	registry := agent.NewRegistry(defs)

	fmt.Println("Available Agents:")
	fmt.Println("-----------------")
	for _, a := range registry.List() {
		fmt.Printf("  %-20s %s\n", a.Name, a.Description)
		if len(a.Tools) > 0 {
			fmt.Printf("  %-20s tools: %v\n", "", a.Tools)
		}
	}

	return nil
}
