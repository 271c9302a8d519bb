// Package core wires the gantry runtime. One Core carries every
// long-lived component; nothing in the tree reaches for a
// package-level singleton, so tests and embedders construct their own.
package core

import (
	"context"
	"path/filepath"
	"time"

	"github.com/gantry-oss/gantry/internal/agent"
	"github.com/gantry-oss/gantry/internal/archive"
	"github.com/gantry-oss/gantry/internal/config"
	"github.com/gantry-oss/gantry/internal/errors"
	"github.com/gantry-oss/gantry/internal/event"
	"github.com/gantry-oss/gantry/internal/queue"
	"github.com/gantry-oss/gantry/internal/session"
	"github.com/gantry-oss/gantry/internal/task"
	"github.com/gantry-oss/gantry/internal/telemetry"
	"github.com/gantry-oss/gantry/internal/tool"
)

// Core is the dependency container for one gantry instance.
type Core struct {
	Config   *config.Config
	Logger   *telemetry.Logger
	Metrics  *telemetry.Metrics
	Bus      *event.Bus
	Queues   *queue.Manager
	Sessions *session.Manager
	Registry *agent.Registry
	Tasks    *task.Manager
	Tools    *tool.Registry
	Archive  archive.Store
	Loop     *agent.Loop

	recorder *archive.Recorder
	exporter telemetry.MetricsExporter
}

// New wires a Core from cfg. A nil cfg uses the built-in defaults; a
// nil logger builds one from the config's logging section.
func New(cfg *config.Config, logger *telemetry.Logger) (*Core, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = telemetry.NewLoggerWith(cfg.Logging.Level, cfg.Logging.Format)
	}

	metrics := telemetry.NewMetrics()
	bus := event.NewBus(logger,
		event.WithHistorySize(cfg.Events.HistorySize),
		event.WithEmitCounter(metrics),
	)
	queues := queue.NewManager()
	sessions := session.NewManager(cfg.Limits.MaxSessions, metrics)

	defs, err := config.LoadAgents(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	registry := agent.NewRegistry(defs)

	runner, err := buildRunner(cfg)
	if err != nil {
		return nil, err
	}

	tasks := task.New(registry, taskRunner(runner), bus, logger,
		task.WithMaxConcurrent(cfg.Limits.MaxConcurrentTasks),
		task.WithMetrics(metrics),
	)

	tools := tool.NewRegistry(bus)
	tools.Register(task.NewTool(tasks))

	loop := agent.NewLoop(queues, sessions, bus, runner, logger, metrics)

	store, err := archive.NewStore(cfg.Archive.Driver, resolvePath(cfg.BaseDir, cfg.Archive.Path))
	if err != nil {
		return nil, err
	}
	var recorder *archive.Recorder
	if store != nil {
		recorder = archive.NewRecorder(bus, store)
	}

	var exporter telemetry.MetricsExporter
	if cfg.Metrics.ExportPath != "" {
		exporter, err = telemetry.NewJSONFileExporter(resolvePath(cfg.BaseDir, cfg.Metrics.ExportPath))
		if err != nil {
			if store != nil {
				store.Close()
			}
			return nil, errors.Wrap(errors.CodeConfigInvalid, "failed to open metrics exporter", err)
		}
		metrics.SetExporter(exporter)
	}

	c := &Core{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Bus:      bus,
		Queues:   queues,
		Sessions: sessions,
		Registry: registry,
		Tasks:    tasks,
		Tools:    tools,
		Archive:  store,
		Loop:     loop,
		recorder: recorder,
		exporter: exporter,
	}
	c.registerWebhooks()

	logger.Debug("Core wired",
		"agents", len(registry.Names()),
		"max_sessions", cfg.Limits.MaxSessions,
		"max_concurrent_tasks", cfg.Limits.MaxConcurrentTasks,
		"archive_driver", cfg.Archive.Driver,
	)
	return c, nil
}

// Reset builds a fresh Core from the same config and logger. The
// receiver is left untouched; callers swap to the new instance and
// Close the old one.
func (c *Core) Reset() (*Core, error) {
	return New(c.Config, c.Logger)
}

// Close stops the task scheduler and releases archive and exporter
// resources. The bus itself holds nothing that needs closing.
func (c *Core) Close() error {
	c.Tasks.Close()
	if c.recorder != nil {
		c.recorder.Close()
	}

	var firstErr error
	if c.Archive != nil {
		if err := c.Archive.Close(); err != nil {
			firstErr = err
		}
	}
	if c.exporter != nil {
		c.Metrics.Flush("shutdown", nil)
		if err := c.exporter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildRunner(cfg *config.Config) (agent.Runner, error) {
	switch cfg.Provider.Name {
	case "", "echo":
		return &agent.EchoRunner{}, nil
	default:
		return nil, errors.Newf(errors.CodeConfigInvalid, "unknown provider: %s", cfg.Provider.Name).
			WithSuggestion("Only the built-in echo provider ships in-tree; set provider.name to echo")
	}
}

// taskRunner routes delegated tasks through the same provider seam the
// turn loop uses.
func taskRunner(runner agent.Runner) task.Runner {
	return task.RunnerFunc(func(ctx context.Context, t task.Task) (string, error) {
		return runner.RunTurn(ctx, agent.TurnRequest{
			SessionID: t.ParentSessionID,
			AgentType: t.AgentType,
			Prompt:    t.Description,
		})
	})
}

func (c *Core) registerWebhooks() {
	if !c.Config.Webhooks.Enabled {
		return
	}
	for _, hook := range c.Config.Webhooks.Hooks {
		timeout, _ := time.ParseDuration(hook.Timeout)
		consumer := event.NewWebhookConsumer(hook.Name, hook.URL, timeout)

		types := make([]event.EventType, 0, len(hook.Events))
		for _, t := range hook.Events {
			types = append(types, event.EventType(t))
		}

		if hook.Blocking {
			name := hook.Name
			c.Bus.Subscribe(types, event.Func(func(ev event.Event) {
				if err := consumer(context.Background(), ev); err != nil {
					c.Logger.Warn("Webhook delivery failed", "webhook", name, "error", err)
				}
			}))
		} else {
			c.Bus.Subscribe(types, consumer)
		}
		c.Logger.Debug("Webhook registered",
			"webhook", hook.Name,
			"events", len(types),
			"blocking", hook.Blocking,
		)
	}
}

func resolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
