package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Initialize a new gantry project",
	Long: `Write a starter gantry.yaml and an agents directory with the
general-purpose definition. Existing files are never overwritten, so
re-running init is safe.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create project directory: %w", err)
		}
	}

	if err := config.WriteStarter(dir); err != nil {
		return err
	}

	if err := createGitignore(dir); err != nil {
		return err
	}

	fmt.Printf("Initialized gantry project in %s\n", dir)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Customize agents in agents/")
	fmt.Println("  2. Run 'gantry serve' to start the server")
	fmt.Println("  3. Run 'gantry status' to check on it")

	return nil
}

func createGitignore(projectDir string) error {
	path := filepath.Join(projectDir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	content := `# gantry
.gantry/

# Secrets
*.env
.env.*

# OS
.DS_Store
Thumbs.db
`
	return os.WriteFile(path, []byte(content), 0644)
}
