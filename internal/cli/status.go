package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/queue"
	"github.com/gantry-oss/gantry/internal/task"
)

var (
	statusServer string
	statusWatch  bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a running server's sessions, queues, and tasks",
	Long: `Query a running gantry server and display its current state.

Examples:
  gantry status                             # server address from gantry.yaml
  gantry status --server http://host:9090   # explicit server
  gantry status --watch                     # live dashboard`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusServer, "server", "", "server base URL (default from gantry.yaml)")
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "watch mode with live updates")
}

// serverStats mirrors the /api/stats payload.
type serverStats struct {
	Bus struct {
		TotalHandlers int    `json:"total_handlers"`
		HistorySize   int    `json:"history_size"`
		EventsEmitted uint64 `json:"events_emitted"`
	} `json:"bus"`
	Tasks    task.Stats `json:"tasks"`
	Sessions struct {
		Count    int `json:"count"`
		Capacity int `json:"capacity"`
	} `json:"sessions"`
	Queues queue.Overview `json:"queues"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := statusServer
	if base == "" {
		cfg, err := loadProjectConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		base = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	base = strings.TrimRight(base, "/")

	if statusWatch {
		return watchStatus(base)
	}

	return showStatus(base)
}

func fetchStats(base string) (*serverStats, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/api/stats")
	if err != nil {
		return nil, fmt.Errorf("failed to reach server at %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var stats serverStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats: %w", err)
	}

	return &stats, nil
}

func showStatus(base string) error {
	stats, err := fetchStats(base)
	if err != nil {
		return err
	}

	fmt.Printf("Server: %s\n", base)
	fmt.Println()

	fmt.Printf("Sessions: %d/%d\n", stats.Sessions.Count, stats.Sessions.Capacity)
	if len(stats.Queues.BusySessions) > 0 {
		fmt.Printf("   Busy: %s\n", strings.Join(stats.Queues.BusySessions, ", "))
	}
	if stats.Queues.TotalQueued > 0 {
		fmt.Printf("   Queued prompts: %d\n", stats.Queues.TotalQueued)
	}
	fmt.Println()

	fmt.Printf("Tasks: %d total (%d/%d running)\n",
		stats.Tasks.TotalTasks, stats.Tasks.Running, stats.Tasks.MaxConcurrent)
	states := make([]task.State, 0, len(stats.Tasks.ByState))
	for state := range stats.Tasks.ByState {
		states = append(states, state)
	}
	sort.Slice(states, func(i, j int) bool { return states[i] < states[j] })
	for _, state := range states {
		fmt.Printf("   %s %-10s %d\n", getStatusIcon(string(state)), state, stats.Tasks.ByState[state])
	}
	fmt.Println()

	fmt.Printf("Events: %d emitted, %d in history, %d handlers\n",
		stats.Bus.EventsEmitted, stats.Bus.HistorySize, stats.Bus.TotalHandlers)

	return nil
}

func watchStatus(base string) error {
	fmt.Println("Watching for updates... (Ctrl+C to stop)")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		// Clear screen (simple approach)
		fmt.Print("\033[H\033[2J")

		if err := showStatus(base); err != nil {
			fmt.Printf("Error: %v\n", err)
		}

		fmt.Printf("\nLast updated: %s\n", time.Now().Format(time.RFC3339))

		<-ticker.C
	}
}

func getStatusIcon(status string) string {
	switch status {
	case "pending":
		return "○"
	case "running", "in_progress":
		return "◐"
	case "completed", "success":
		return "●"
	case "failed", "error":
		return "✗"
	case "cancelled":
		return "◌"
	default:
		return "?"
	}
}
