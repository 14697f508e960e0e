// LifeOps turns natural-language requests into actions against a
// document database and a calendar.
//
// It serves an HTTP API, an MCP tool server on stdio and a CLI for
// one-shot actions. Configuration is loaded from a single YAML file
// discovered automatically (see [config.DefaultSearchPaths]). A .env
// file beside the config or in the working directory is loaded first
// so ${VAR} references in the config can be satisfied from it.
//
// Usage:
//
//	lifeops serve              Start the API server
//	lifeops mcp                Serve the action tools over MCP stdio
//	lifeops exec <json>        Execute an action object ("-" reads stdin)
//	lifeops ask <message>      Send one message through the assistant
//	lifeops tools              List the remote tools
//	lifeops init [dir]         Initialize a working directory
//	lifeops version            Print version and build information
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/nugget/lifeops/internal/buildinfo"
	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/config"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/notion"
	"github.com/nugget/lifeops/internal/resolve"
)

// errMCPNotConfigured is returned by commands that need the remote tool
// endpoint when mcp.url is empty.
var errMCPNotConfigured = errors.New("mcp.url is not set")

// main constructs the OS-level environment and delegates to [run] so
// the command surface can be driven from tests.
func main() {
	if err := run(context.Background(), os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand to keep
// flag package globals out of tests.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case command != "":
			cmdArgs = append(cmdArgs, args[i])
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-"):
			command = args[i]
		default:
			return fmt.Errorf("unknown flag: %s", args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "mcp":
		// stdout carries the protocol, so logs go to stderr.
		return runMCP(ctx, stderr, configPath)
	case "exec":
		if len(cmdArgs) != 1 {
			return fmt.Errorf("usage: lifeops exec <json|->")
		}
		return runExec(ctx, stdin, stdout, stderr, configPath, cmdArgs[0])
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: lifeops ask [-thread <id>] <message>")
		}
		return runAsk(ctx, stdout, stderr, configPath, outputFmt, cmdArgs)
	case "tools":
		return runTools(ctx, stdout, stderr, configPath, outputFmt)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.BuildInfo()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "LifeOps - natural-language life management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: lifeops [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Start the API server")
	fmt.Fprintln(w, "  mcp              Serve action tools over MCP stdio")
	fmt.Fprintln(w, "  exec <json|->    Execute an action object")
	fmt.Fprintln(w, "  ask <message>    Send one message through the assistant")
	fmt.Fprintln(w, "  tools            List the remote tools")
	fmt.Fprintln(w, "  init [dir]       Initialize working directory (default: .)")
	fmt.Fprintln(w, "  version          Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/lifeops/config.yaml, /etc/lifeops/config.yaml")
	return nil
}

// newLogger creates a structured logger writing to w at the given level
// and format. Any format other than "json" produces text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// configuredLogger returns a logger honouring the config's level and
// format.
func configuredLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.LogLevel != "" {
		// Validated by config.Validate.
		level, _ = config.ParseLogLevel(cfg.LogLevel)
	}
	return newLogger(w, level, cfg.LogFormat)
}

// loadEnv loads .env files beside the config and in the working
// directory. Variables already set in the environment win.
func loadEnv(configPath string) {
	paths := []string{".env"}
	if configPath != "" {
		paths = append([]string{filepath.Join(filepath.Dir(configPath), ".env")}, paths...)
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err == nil {
			_ = godotenv.Load(abs)
		}
	}
}

// loadConfig locates, parses and validates the configuration. If
// explicit is non-empty that exact path is used.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	loadEnv(cfgPath)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfgPath, fmt.Errorf("invalid config %s: %w", cfgPath, err)
	}
	return cfg, cfgPath, nil
}

// pipeline is the wired action path shared by every command.
type pipeline struct {
	tools    *mcp.Client
	docs     *notion.Client
	dbs      notion.Databases
	resolver *resolve.Resolver
	exec     *executor.Executor
}

func newToolClient(cfg *config.Config, logger *slog.Logger) (*mcp.Client, error) {
	if !cfg.MCP.Configured() {
		return nil, errMCPNotConfigured
	}
	transport := mcp.NewHTTPTransport(mcp.HTTPConfig{
		URL:         cfg.MCP.URL,
		Bearer:      cfg.MCP.Bearer,
		Timeout:     cfg.MCP.Timeout(),
		DialRetries: cfg.MCP.DialRetries,
		Logger:      logger,
	})
	return mcp.NewClient(transport, logger), nil
}

func newPipeline(cfg *config.Config, logger *slog.Logger) (*pipeline, error) {
	tools, err := newToolClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	dbs := notion.Databases{
		LifeDomains: cfg.Notion.LifeDomains,
		Projects:    cfg.Notion.Projects,
		Tasks:       cfg.Notion.Tasks,
		Content:     cfg.Notion.Content,
		Journal:     cfg.Notion.Journal,
	}
	docs := notion.NewClient(tools, logger)
	cal := calendar.NewClient(tools, cfg.Calendar.ID, cfg.Calendar.Timezone, logger)
	scoring := resolve.Scoring{
		Exact:        cfg.Resolver.Exact,
		Contains:     cfg.Resolver.Contains,
		Contained:    cfg.Resolver.Contained,
		OverlapScale: cfg.Resolver.OverlapScale,
		Threshold:    cfg.Resolver.Threshold,
	}
	resolver := resolve.New(docs, cal, dbs, scoring, logger)

	return &pipeline{
		tools:    tools,
		docs:     docs,
		dbs:      dbs,
		resolver: resolver,
		exec:     executor.New(docs, cal, resolver, dbs, logger),
	}, nil
}

func (p *pipeline) Close() error {
	return p.tools.Close()
}
