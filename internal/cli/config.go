package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gantry-oss/gantry/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for viewing and modifying configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate all configuration files",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Pretty print config
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	fmt.Println(string(out))

	// Show config file location
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	}

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	configFile := config.ConfigFileName
	if cfgFile != "" {
		configFile = cfgFile
	} else if viper.ConfigFileUsed() != "" {
		configFile = viper.ConfigFileUsed()
	}

	content, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg map[string]interface{}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// Set the value (supports nested keys with dot notation)
	setNestedValue(cfg, key, value)

	// Write back
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, out, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	dir := "."
	if cfgFile != "" {
		dir = filepath.Dir(cfgFile)
	}

	errors := []string{}

	// Validate main config
	_, err := config.Load(dir)
	if err != nil {
		errors = append(errors, fmt.Sprintf("%s: %v", config.ConfigFileName, err))
	} else {
		fmt.Printf("%s: OK\n", config.ConfigFileName)
	}

	// Validate agent definitions
	if entries, err := os.ReadDir(filepath.Join(dir, config.AgentsDir)); err == nil {
		for _, entry := range entries {
			if entry.IsDir() || !isYAML(entry.Name()) {
				continue
			}
			name := stripYAML(entry.Name())
			if _, err := config.LoadAgent(dir, name); err != nil {
				errors = append(errors, fmt.Sprintf("%s/%s: %v", config.AgentsDir, entry.Name(), err))
			} else {
				fmt.Printf("%s/%s: OK\n", config.AgentsDir, entry.Name())
			}
		}
	}

	if len(errors) > 0 {
		fmt.Println("\nValidation Errors:")
		for _, e := range errors {
			fmt.Printf("  - %s\n", e)
		}
		return fmt.Errorf("validation failed with %d errors", len(errors))
	}

	fmt.Println("\nAll configurations valid.")
	return nil
}

func setNestedValue(m map[string]interface{}, key, value string) {
	parts := splitKey(key)
	if len(parts) == 1 {
		m[key] = value
		return
	}

	current := m
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		if next, ok := current[parts[i]].(map[string]interface{}); ok {
			current = next
		} else {
			return
		}
	}
	current[parts[len(parts)-1]] = value
}

func splitKey(key string) []string {
	var parts []string
	current := ""
	for _, c := range key {
		if c == '.' {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
		} else {
			current += string(c)
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func stripYAML(name string) string {
	if len(name) > 5 && name[len(name)-5:] == ".yaml" {
		return name[:len(name)-5]
	}
	if len(name) > 4 && name[len(name)-4:] == ".yml" {
		return name[:len(name)-4]
	}
	return name
}
