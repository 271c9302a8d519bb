package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	logsSession string
	logsFollow  bool
	logsLines   int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View server logs",
	Long: `View the log file a running server writes when logging.file is set.

Examples:
  gantry logs                          # View recent log lines
  gantry logs --session session-abc    # Filter by session ID
  gantry logs --follow                 # Follow log output`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().StringVar(&logsSession, "session", "", "filter lines by session ID")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.Logging.File == "" {
		fmt.Println("File logging is disabled; set logging.file in gantry.yaml.")
		return nil
	}

	logFile := cfg.Logging.File
	if !filepath.IsAbs(logFile) {
		logFile = filepath.Join(cfg.BaseDir, logFile)
	}

	if logsFollow {
		return followLogs(logFile)
	}

	return showLogs(logFile)
}

func showLogs(logFile string) error {
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		fmt.Println("No logs found.")
		return nil
	}

	content, err := readLastLines(logFile, logsLines)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", logFile, err)
	}

	for _, line := range strings.Split(content, "\n") {
		if logsSession != "" && !strings.Contains(line, logsSession) {
			continue
		}
		fmt.Println(line)
	}

	return nil
}

func followLogs(logFile string) error {
	fmt.Println("Following logs... (Ctrl+C to stop)")

	// Simple tail -f implementation
	file, err := os.Open(logFile)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("Waiting for logs...")
			for {
				time.Sleep(time.Second)
				if _, err := os.Stat(logFile); err == nil {
					file, _ = os.Open(logFile)
					break
				}
			}
		} else {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}
	defer file.Close()

	// Seek to end
	file.Seek(0, 2)

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		if logsSession != "" && !strings.Contains(line, logsSession) {
			continue
		}

		fmt.Print(line)
	}
}

func readLastLines(filepath string, n int) (string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}

	return strings.Join(lines, "\n"), scanner.Err()
}
