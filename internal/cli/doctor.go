package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/archive"
	"github.com/gantry-oss/gantry/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check environment and configuration",
	Long:  "Validate that the configuration, agent definitions, and archive storage are properly set up.",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("gantry doctor — checking your environment")
	fmt.Println()
	allOK := true

	// 1. Go version
	fmt.Printf("  Go version: %s", runtime.Version())
	fmt.Println(" ✓")

	// 2. OS/Arch
	fmt.Printf("  Platform:   %s/%s", runtime.GOOS, runtime.GOARCH)
	fmt.Println(" ✓")

	// 3. Configuration
	cfg, err := loadProjectConfig()
	if err != nil {
		fmt.Printf("  Config:     INVALID (%s) ✗\n", err)
		allOK = false
	} else if _, statErr := os.Stat(filepath.Join(cfg.BaseDir, config.ConfigFileName)); os.IsNotExist(statErr) {
		fmt.Println("  Config:     not found, using defaults")
		fmt.Printf("    → Run 'gantry init' to create a project\n")
	} else {
		fmt.Printf("  Config:     %s v%s", cfg.Name, cfg.Version)
		fmt.Println(" ✓")
	}

	// 4. Agent definitions
	if cfg != nil {
		defs, err := config.LoadAgents(cfg.BaseDir)
		if err != nil {
			fmt.Printf("  Agents:     FAILED (%s) ✗\n", err)
			allOK = false
		} else {
			fmt.Printf("  Agents:     %d defined + general-purpose built-in", len(defs))
			fmt.Println(" ✓")
		}
	}

	// 5. Archive storage
	if cfg != nil {
		path := cfg.Archive.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(cfg.BaseDir, path)
		}
		store, err := archive.NewStore(cfg.Archive.Driver, path)
		switch {
		case err != nil:
			fmt.Printf("  Archive:    FAILED (%s) ✗\n", err)
			allOK = false
		case store == nil:
			fmt.Println("  Archive:    disabled ✓")
		default:
			store.Close()
			fmt.Printf("  Archive:    %s (%s)", cfg.Archive.Driver, cfg.Archive.Path)
			fmt.Println(" ✓")
		}
	}

	// 6. Provider
	if cfg != nil {
		switch cfg.Provider.Name {
		case "", "echo":
			fmt.Println("  Provider:   echo ✓")
		default:
			fmt.Printf("  Provider:   %s UNKNOWN ✗\n", cfg.Provider.Name)
			fmt.Println("    → Set provider.name to echo")
			allOK = false
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed!")
	} else {
		fmt.Println("Some checks failed. See above for details.")
	}

	return nil
}
