package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nugget/lifeops/internal/api"
	"github.com/nugget/lifeops/internal/assistant"
	"github.com/nugget/lifeops/internal/buildinfo"
	"github.com/nugget/lifeops/internal/config"
	"github.com/nugget/lifeops/internal/connwatch"
	"github.com/nugget/lifeops/internal/events"
	"github.com/nugget/lifeops/internal/llm"
	"github.com/nugget/lifeops/internal/mqtt"
)

func mkdirData(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}

func dataPath(dir, name string) string {
	return filepath.Join(dir, name)
}

// runServe starts the API server and, when configured, the MQTT
// publisher. It blocks until SIGINT or SIGTERM.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo, "text")
	logger.Info("starting LifeOps", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "branch", buildinfo.GitBranch, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger = configuredLogger(stdout, cfg)
	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Models.Default,
		"ollama_url", cfg.Models.OllamaURL,
		"mcp_configured", cfg.MCP.Configured(),
	)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Audit store ---
	store, err := openAudit(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()
	logger.Info("audit database opened", "path", dataPath(cfg.DataDir, "lifeops.db"))

	bus := events.New()

	// --- Dependency health ---
	// Feeds /health and the MQTT tool_status sensor, and publishes
	// up/down transitions on the bus.
	monitor := connwatch.NewMonitor(bus, logger)
	defer monitor.Stop()

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, logger)
	server.SetAuditStore(store)
	server.SetEventBus(bus)
	server.SetMonitor(monitor)

	// --- Action pipeline ---
	// Without a tool endpoint the server still answers health, version
	// and execution history; action endpoints report 503.
	var exec actionRunner
	if p, err := newPipeline(cfg, logger); err == nil {
		defer p.Close()
		p.exec.SetEventBus(bus)
		exec = p.exec

		monitor.Watch(ctx, api.ServiceMCP, func(ctx context.Context) error {
			_, err := p.tools.ListTools(ctx)
			return err
		}, connwatch.DefaultBackoff())

		ollama := llm.NewOllamaClient(cfg.Models.OllamaURL, logger)
		monitor.Watch(ctx, "ollama", ollama.Ping, connwatch.DefaultBackoff())

		a := assistant.New(ollama, p.exec, store, assistantConfig(cfg), logger)
		a.SetEventBus(bus)

		server.SetExecutor(p.exec)
		server.SetAssistant(a)
		server.SetProjects(p.docs, p.dbs.Projects)
		server.SetTools(p.tools)
	} else if errors.Is(err, errMCPNotConfigured) {
		logger.Warn("tool endpoint not configured, action endpoints disabled")
	} else {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	// --- MQTT publisher ---
	var pub *mqtt.Publisher
	if cfg.MQTT.Configured() {
		pub, err = newPublisher(cfg.MQTT, cfg.DataDir, cfg.Calendar.Timezone, cfg.Models.Default, monitor, exec, logger)
		if err != nil {
			return err
		}
		monitor.Watch(ctx, "mqtt", pub.AwaitConnection, connwatch.Backoff{Timeout: 2 * time.Second})
		g.Go(func() error {
			if err := pub.Start(gctx); err != nil {
				logger.Error("mqtt publisher failed", "error", err)
			}
			return nil
		})
		g.Go(func() error {
			pub.Watch(gctx, bus)
			return nil
		})
		logger.Info("mqtt publishing enabled",
			"broker", cfg.MQTT.Broker,
			"device_name", cfg.MQTT.DeviceName,
			"interval", cfg.MQTT.PublishIntervalSec,
			"commands", cfg.MQTT.Commands,
		)
	} else {
		logger.Info("mqtt publishing disabled (not configured)")
	}

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if pub != nil {
			if err := pub.Stop(shutdownCtx); err != nil {
				logger.Error("mqtt shutdown failed", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("LifeOps stopped")
	return nil
}

// newPublisher builds the MQTT publisher. The command topic is enabled
// only when configured and an executor is available.
func newPublisher(cfg config.MQTTConfig, dataDir, zone, model string, monitor *connwatch.Monitor, exec actionRunner, logger *slog.Logger) (*mqtt.Publisher, error) {
	instanceID, err := mqtt.LoadOrCreateInstanceID(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load mqtt instance id: %w", err)
	}
	logger.Info("mqtt instance ID loaded", "instance_id", instanceID)

	// Counters reset at midnight in the user's zone.
	var loc *time.Location
	if zone != "" {
		loc, _ = time.LoadLocation(zone) // validated by config
	}

	pub := mqtt.New(cfg, instanceID, mqtt.NewDailyActions(loc), &mqttStats{model: model, monitor: monitor}, logger)
	if cfg.Commands {
		if exec == nil {
			logger.Warn("mqtt commands requested but no tool endpoint is configured")
		} else {
			pub.SetCommandHandler(actionCommand(exec, logger))
		}
	}
	return pub, nil
}

// mqttStats adapts runtime state to [mqtt.StatsSource].
type mqttStats struct {
	model   string
	monitor *connwatch.Monitor
}

func (s *mqttStats) Uptime() time.Duration { return buildinfo.Uptime() }
func (s *mqttStats) Version() string       { return buildinfo.Version }
func (s *mqttStats) DefaultModel() string  { return s.model }

func (s *mqttStats) ToolStatus() string { return s.monitor.State(api.ServiceMCP) }
