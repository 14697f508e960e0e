// Package assistant is the conversational front end of the pipeline. It
// asks a language model to turn a user message into action JSON, runs
// the action, composes the reply and records the exchange.
//
// A reply the parser rejects gets exactly one repair attempt with a
// stricter prompt. Every executed action is written to the audit store
// with its arguments, outcome and elapsed time.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/audit"
	"github.com/nugget/lifeops/internal/compose"
	"github.com/nugget/lifeops/internal/events"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/llm"
	"github.com/nugget/lifeops/internal/prompts"
)

// ErrEmptyMessage is returned for a blank user message.
var ErrEmptyMessage = errors.New("message is required")

// titleLimit is the thread title length in characters.
const titleLimit = 50

// Generator produces model replies. *llm.OllamaClient satisfies it.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Executor runs parsed actions. *executor.Executor satisfies it.
type Executor interface {
	Execute(ctx context.Context, act action.Action) executor.Result
}

// Store persists threads, messages and executions. *audit.Store
// satisfies it.
type Store interface {
	CreateThread(ctx context.Context, title string) (*audit.Thread, error)
	Thread(ctx context.Context, id string) (*audit.Thread, error)
	AddMessage(ctx context.Context, threadID, role, content string) (*audit.Message, error)
	History(ctx context.Context, threadID string, limit int) ([]audit.Message, error)
	RecordExecution(ctx context.Context, rec audit.Execution) (string, error)
}

// Config holds generation settings.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	HistoryLimit int
	TimeZone     string // default user zone when a request names none
}

// Request is one user message.
type Request struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId,omitempty"`
	TimeZone string `json:"timezone,omitempty"`
}

// Reply is the composed outcome of a request.
type Reply struct {
	compose.Response

	ThreadID    string `json:"threadId,omitempty"`
	ExecutionMS int64  `json:"executionTime"`

	// Set when the model output could not be parsed after repair.
	Details          string `json:"details,omitempty"`
	OriginalResponse string `json:"originalResponse,omitempty"`
	RepairResponse   string `json:"repairResponse,omitempty"`
}

// Assistant handles user messages.
type Assistant struct {
	gen    Generator
	exec   Executor
	store  Store
	cfg    Config
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time
}

// New creates an assistant. A nil store disables threads, history and
// the execution audit.
func New(gen Generator, exec Executor, store Store, cfg Config, logger *slog.Logger) *Assistant {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 6
	}
	return &Assistant{
		gen:    gen,
		exec:   exec,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "assistant"),
		now:    time.Now,
	}
}

// SetEventBus routes request events to bus.
func (a *Assistant) SetEventBus(bus *events.Bus) {
	a.bus = bus
}

// ThreadTitle derives a thread title from its first message.
func ThreadTitle(message string) string {
	if utf8.RuneCountInString(message) <= titleLimit {
		return message
	}
	return string([]rune(message)[:titleLimit]) + "..."
}

// Handle runs one request end to end. Errors are returned only for
// problems outside the pipeline: a blank message, an unknown thread, a
// failed model call or a storage failure. Pipeline outcomes, including
// unparseable model output, are reported in the Reply.
func (a *Assistant) Handle(ctx context.Context, req Request) (*Reply, error) {
	start := a.now()
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	zone := req.TimeZone
	if zone == "" {
		zone = a.cfg.TimeZone
	}

	threadID, history, err := a.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	log := a.logger.With("thread_id", threadID)
	a.bus.Emit(events.SourceAssistant, events.KindRequestStart, map[string]any{
		"thread_id":   threadID,
		"message_len": len(req.Message),
	})

	raw, err := a.generate(ctx, threadID, 1, llm.Request{
		System:   prompts.ActionSystemPrompt(a.now(), zone, history),
		Messages: []llm.Message{{Role: llm.RoleUser, Content: req.Message}},
	})
	if err != nil {
		return nil, err
	}
	if err := a.save(ctx, threadID, llm.RoleAssistant, raw); err != nil {
		return nil, err
	}

	act, perr := action.Parse(raw)
	if perr != nil {
		log.Info("model output unparseable, repairing", "error", perr)
		a.bus.Emit(events.SourceAssistant, events.KindRepair, map[string]any{
			"thread_id": threadID,
			"error":     perr.Error(),
		})
		repaired, err := a.generate(ctx, threadID, 2, llm.Request{
			System:   prompts.RepairSystemPrompt(a.now()),
			Messages: []llm.Message{{Role: llm.RoleUser, Content: prompts.RepairUserMessage(req.Message, raw)}},
		})
		if err != nil {
			return nil, err
		}
		act, perr = action.Parse(repaired)
		if perr != nil {
			log.Warn("model output unparseable after repair", "error", perr)
			reply := &Reply{
				Response: compose.Response{
					Error:     "Failed to parse LLM response after repair attempt",
					ErrorType: "parse_error",
					Stage:     "parse",
				},
				ThreadID:         threadID,
				ExecutionMS:      a.now().Sub(start).Milliseconds(),
				Details:          perr.Error(),
				OriginalResponse: raw,
				RepairResponse:   repaired,
			}
			a.complete(reply)
			return reply, nil
		}
	}

	log = log.With("action", string(act.Kind))
	var res executor.Result
	if mf := executor.Validate(act); mf != nil {
		log.Info("action is missing fields", "fields", mf.Fields)
		res = mf
	} else {
		res = a.exec.Execute(ctx, act)
	}

	reply := &Reply{
		Response:    compose.Compose(res),
		ThreadID:    threadID,
		ExecutionMS: a.now().Sub(start).Milliseconds(),
	}
	if err := a.audit(ctx, threadID, act, reply); err != nil {
		log.Warn("failed to record execution", "error", err)
	}
	a.complete(reply)
	return reply, nil
}

// prepare resolves the thread, stores the user message and returns the
// prior turns used as prompt context.
func (a *Assistant) prepare(ctx context.Context, req Request) (string, []prompts.Turn, error) {
	if a.store == nil {
		return "", nil, nil
	}

	threadID := req.ThreadID
	if threadID == "" {
		th, err := a.store.CreateThread(ctx, ThreadTitle(req.Message))
		if err != nil {
			return "", nil, fmt.Errorf("create thread: %w", err)
		}
		threadID = th.ID
	} else if _, err := a.store.Thread(ctx, threadID); err != nil {
		return "", nil, err
	}

	if err := a.save(ctx, threadID, llm.RoleUser, req.Message); err != nil {
		return "", nil, err
	}
	msgs, err := a.store.History(ctx, threadID, a.cfg.HistoryLimit)
	if err != nil {
		return "", nil, fmt.Errorf("load history: %w", err)
	}

	// The newest message is the current request, sent as the user turn.
	if n := len(msgs); n > 0 {
		msgs = msgs[:n-1]
	}
	turns := make([]prompts.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, prompts.Turn{Role: m.Role, Content: m.Content})
	}
	return threadID, turns, nil
}

func (a *Assistant) save(ctx context.Context, threadID, role, content string) error {
	if a.store == nil {
		return nil
	}
	if _, err := a.store.AddMessage(ctx, threadID, role, content); err != nil {
		return fmt.Errorf("save %s message: %w", role, err)
	}
	return nil
}

func (a *Assistant) generate(ctx context.Context, threadID string, attempt int, req llm.Request) (string, error) {
	req.Model = a.cfg.Model
	req.Temperature = a.cfg.Temperature
	req.MaxTokens = a.cfg.MaxTokens
	req.JSON = true

	start := a.now()
	resp, err := a.gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate action: %w", err)
	}
	a.bus.Emit(events.SourceAssistant, events.KindLLMResponse, map[string]any{
		"thread_id":  threadID,
		"model":      resp.Model,
		"attempt":    attempt,
		"elapsed_ms": a.now().Sub(start).Milliseconds(),
	})
	a.logger.Debug("model replied",
		"thread_id", threadID,
		"attempt", attempt,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return resp.Content, nil
}

func (a *Assistant) audit(ctx context.Context, threadID string, act action.Action, reply *Reply) error {
	if a.store == nil {
		return nil
	}
	args, err := json.Marshal(act.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	result, err := json.Marshal(reply.Response)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	status := audit.StatusOK
	if !reply.Success {
		status = audit.StatusError
	}
	_, err = a.store.RecordExecution(ctx, audit.Execution{
		ThreadID:    threadID,
		Action:      string(act.Kind),
		Args:        args,
		Result:      result,
		Status:      status,
		ExecutionMS: reply.ExecutionMS,
	})
	return err
}

func (a *Assistant) complete(reply *Reply) {
	a.bus.Emit(events.SourceAssistant, events.KindRequestComplete, map[string]any{
		"thread_id":  reply.ThreadID,
		"action":     string(reply.Action),
		"success":    reply.Success,
		"elapsed_ms": reply.ExecutionMS,
	})
}
