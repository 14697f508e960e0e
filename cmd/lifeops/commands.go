package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/assistant"
	"github.com/nugget/lifeops/internal/audit"
	"github.com/nugget/lifeops/internal/compose"
	"github.com/nugget/lifeops/internal/config"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/llm"
	"github.com/nugget/lifeops/internal/mcpserver"
	"github.com/nugget/lifeops/internal/mqtt"
)

// errIncomplete is returned by exec and ask when the action did not
// succeed, after the response has been printed.
var errIncomplete = errors.New("action did not complete")

// actionRunner executes parsed actions. *executor.Executor satisfies it.
type actionRunner interface {
	Execute(ctx context.Context, act action.Action) executor.Result
}

// executeRaw parses raw action JSON and runs it. Actions missing
// required fields are reported without executing.
func executeRaw(ctx context.Context, exec actionRunner, raw []byte) compose.Response {
	act, err := action.Parse(string(raw))
	if err != nil {
		return compose.ParseFailure(err)
	}
	if mf := executor.Validate(act); mf != nil {
		return compose.Compose(mf)
	}
	return compose.Compose(exec.Execute(ctx, act))
}

// actionCommand adapts the executor to the MQTT command topic. Each
// payload is one action object; the reply is the composed response.
func actionCommand(exec actionRunner, logger *slog.Logger) mqtt.CommandFunc {
	return func(ctx context.Context, payload []byte) []byte {
		resp := executeRaw(ctx, exec, payload)
		logger.Info("mqtt command handled", "action", resp.Action, "success", resp.Success)
		out, err := json.Marshal(resp)
		if err != nil {
			logger.Error("failed to encode command result", "error", err)
			return []byte(`{"success":false,"error":"failed to encode result"}`)
		}
		return out
	}
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runExec handles "lifeops exec <json>". The argument "-" reads the
// action object from stdin.
func runExec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, configPath, arg string) error {
	raw := []byte(arg)
	if arg == "-" {
		var err error
		if raw, err = io.ReadAll(stdin); err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stderr, cfg)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	resp := executeRaw(ctx, p.exec, raw)
	if err := writeIndented(stdout, resp); err != nil {
		return err
	}
	if !resp.Success {
		return errIncomplete
	}
	return nil
}

// runAsk handles "lifeops ask [-thread <id>] <message>". The exchange
// is stored in the audit database so a later ask can continue the
// thread.
func runAsk(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string, args []string) error {
	var threadID string
	if len(args) >= 2 && args[0] == "-thread" {
		threadID, args = args[1], args[2:]
	}
	message := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stderr, cfg)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	store, err := openAudit(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	a := assistant.New(
		llm.NewOllamaClient(cfg.Models.OllamaURL, logger),
		p.exec,
		store,
		assistantConfig(cfg),
		logger,
	)

	reply, err := a.Handle(ctx, assistant.Request{Message: message, ThreadID: threadID})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if outputFmt == "json" {
		if err := writeIndented(stdout, reply); err != nil {
			return err
		}
	} else {
		printReply(stdout, reply)
	}
	if !reply.Success {
		return errIncomplete
	}
	return nil
}

func printReply(w io.Writer, reply *assistant.Reply) {
	switch {
	case reply.Success:
		fmt.Fprintln(w, reply.Message)
		if reply.Link != "" {
			fmt.Fprintln(w, reply.Link)
		}
		if reply.Caveat != "" {
			fmt.Fprintln(w, "Note:", reply.Caveat)
		}
	case reply.UserPrompt != "":
		fmt.Fprintln(w, reply.UserPrompt)
	default:
		fmt.Fprintln(w, "Error:", reply.Error)
	}
	if reply.ThreadID != "" {
		fmt.Fprintf(w, "\n(thread %s, %dms)\n", reply.ThreadID, reply.ExecutionMS)
	}
}

// runTools handles "lifeops tools", listing what the remote endpoint
// offers.
func runTools(ctx context.Context, stdout, stderr io.Writer, configPath, outputFmt string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stderr, cfg)

	tools, err := newToolClient(cfg, logger)
	if err != nil {
		return err
	}
	defer tools.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	defs, err := tools.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	if outputFmt == "json" {
		return writeIndented(stdout, defs)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	for _, d := range defs {
		desc, _, _ := strings.Cut(d.Description, "\n")
		fmt.Fprintf(tw, "%s\t%s\n", d.Name, desc)
	}
	return tw.Flush()
}

// runMCP handles "lifeops mcp", serving the action tools on stdio.
func runMCP(ctx context.Context, stderr io.Writer, configPath string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := configuredLogger(stderr, cfg)

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	srv := mcpserver.New(p.exec, p.resolver, logger)
	if err := srv.ServeStdio(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func openAudit(dataDir string) (*audit.Store, error) {
	if err := mkdirData(dataDir); err != nil {
		return nil, err
	}
	path := dataPath(dataDir, "lifeops.db")
	store, err := audit.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open audit database %s: %w", path, err)
	}
	return store, nil
}

func assistantConfig(cfg *config.Config) assistant.Config {
	return assistant.Config{
		Model:        cfg.Models.Default,
		Temperature:  cfg.Models.Temperature,
		MaxTokens:    cfg.Models.MaxTokens,
		HistoryLimit: cfg.Assistant.HistoryLimit,
		TimeZone:     cfg.Calendar.Timezone,
	}
}
