package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gantry-oss/gantry/internal/core"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/server"
	"github.com/gantry-oss/gantry/internal/telemetry"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gantry server",
	Long:  `Start the HTTP server hosting sessions, the task scheduler, and the live event stream.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "host to bind to")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadProjectConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logger := telemetry.NewLoggerWith(level, cfg.Logging.Format)
	if cfg.Logging.File != "" {
		path := cfg.Logging.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.BaseDir, path)
		}
		if err := logger.WithFile(path); err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
	}
	defer logger.Close()

	c, err := core.New(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	// Every event is visible in the logs when running at debug level.
	c.Bus.Subscribe(nil, event.NewLogConsumer(logger, "debug"))

	srv := server.New(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	return srv.Start(ctx, addr)
}
