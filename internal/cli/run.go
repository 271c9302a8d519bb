package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/core"
	"github.com/gantry-oss/gantry/internal/task"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

var (
	runAgent       string
	runAttachments []string
	runOutputJSON  bool
)

var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a single prompt without a server",
	Long: `Wire the runtime in-process, run one prompt, and print the result.

The prompt runs as a turn in a fresh session. With --agent the prompt
is delegated to a background task for that agent type instead.

Examples:
  gantry run "summarize the open work"
  gantry run --attach notes.md "review the attached notes"
  gantry run --agent general-purpose "collect the failing checks"
  gantry run --json "what changed today"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "delegate to a task for this agent type")
	runCmd.Flags().StringArrayVar(&runAttachments, "attach", nil, "attachment path (repeatable)")
	runCmd.Flags().BoolVar(&runOutputJSON, "json", false, "output the full result as JSON")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt, stopping...")
		cancel()
	}()

	cfg, err := loadProjectConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := telemetry.NewLoggerWith(level, cfg.Logging.Format)
	defer logger.Close()

	c, err := core.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to wire runtime: %w", err)
	}
	defer c.Close()

	prompt := strings.Join(args, " ")

	if runAgent != "" {
		return runDelegated(ctx, c, prompt)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	sess, err := c.Sessions.Create(cwd)
	if err != nil {
		return err
	}

	res, err := c.Loop.Submit(ctx, sess.ID, prompt, runAttachments)
	if err != nil {
		return fmt.Errorf("turn failed: %w", err)
	}

	if runOutputJSON {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(res.Result)
	return nil
}

// runDelegated routes the prompt through the task manager so it runs
// under the named agent type rather than as a session turn.
func runDelegated(ctx context.Context, c *core.Core, prompt string) error {
	created, err := c.Tasks.Create(ctx, prompt, runAgent)
	if err != nil {
		return err
	}

	if err := c.Tasks.Wait(ctx); err != nil {
		return fmt.Errorf("interrupted while waiting for task %s: %w", created.ID, err)
	}

	done, err := c.Tasks.Get(created.ID)
	if err != nil {
		return err
	}

	if runOutputJSON {
		out, err := json.MarshalIndent(done, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	switch done.State {
	case task.StateCompleted:
		fmt.Println(done.Result)
	case task.StateFailed:
		return fmt.Errorf("task failed: %s", done.Error)
	default:
		return fmt.Errorf("task ended in state %s", done.State)
	}

	return nil
}
