// Package events carries pipeline activity from the executor and the
// assistant to observers: the WebSocket stream, the MQTT publisher and
// the audit log. The bus is nil-safe, so components publish without
// checking whether anyone is listening.
package events

import (
	"sync"
	"time"
)

// Sources.
const (
	// SourceExecutor identifies events from action execution.
	SourceExecutor = "executor"
	// SourceAssistant identifies events from the conversational layer.
	SourceAssistant = "assistant"
	// SourceMCPServer identifies events from the MCP server surface.
	SourceMCPServer = "mcpserver"
	// SourceConnwatch identifies dependency health transitions.
	SourceConnwatch = "connwatch"
)

// Kinds.
const (
	// KindActionStart signals the beginning of an action execution.
	// Data: action.
	KindActionStart = "action_start"
	// KindResolved signals a name resolution attempt.
	// Data: action, class, name, id, score, ok.
	KindResolved = "resolved"
	// KindToolCall signals the start of a remote tool call.
	// Data: action, stage, tool.
	KindToolCall = "tool_call"
	// KindToolDone signals completion of a remote tool call.
	// Data: action, stage, tool, ok, duration_ms.
	KindToolDone = "tool_done"
	// KindActionComplete signals the end of an action execution.
	// Data: action, outcome, stage, record_id, elapsed_ms.
	KindActionComplete = "action_complete"

	// KindRequestStart signals an incoming assistant message.
	// Data: thread_id, message_len.
	KindRequestStart = "request_start"
	// KindLLMResponse signals a model reply.
	// Data: thread_id, model, attempt, elapsed_ms.
	KindLLMResponse = "llm_response"
	// KindRepair signals a second generation after unparseable output.
	// Data: thread_id, error.
	KindRepair = "repair"
	// KindRequestComplete signals the end of an assistant request.
	// Data: thread_id, action, success, elapsed_ms.
	KindRequestComplete = "request_complete"

	// KindServiceUp signals a dependency became reachable.
	// Data: service.
	KindServiceUp = "service_up"
	// KindServiceDown signals a dependency became unreachable.
	// Data: service, error.
	KindServiceDown = "service_down"
)

// Outcome values carried in KindActionComplete events.
const (
	OutcomeSuccess = "success"
	OutcomeMissing = "missing_fields"
	OutcomeFailure = "failure"
)

// Event is a single pipeline event.
type Event struct {
	Timestamp time.Time      `json:"ts"`
	Source    string         `json:"source"`
	Kind      string         `json:"kind"`
	Data      map[string]any `json:"data,omitempty"`
}

// Bus is a non-blocking broadcast bus. Slow subscribers miss events
// rather than blocking publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
	// recvToSend maps the receive-only channel handed to subscribers
	// back to the channel stored in subs.
	recvToSend map[<-chan Event]chan Event
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		subs:       make(map[chan Event]struct{}),
		recvToSend: make(map[<-chan Event]chan Event),
	}
}

// Publish sends an event to every subscriber whose buffer has room.
// Safe on a nil receiver.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Emit stamps and publishes an event. Safe on a nil receiver.
func (b *Bus) Emit(source, kind string, data map[string]any) {
	if b == nil {
		return
	}
	b.Publish(Event{Timestamp: time.Now(), Source: source, Kind: kind, Data: data})
}

// Subscribe returns a channel of published events. Callers must
// Unsubscribe when done.
func (b *Bus) Subscribe(bufSize int) <-chan Event {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	b.recvToSend[ch] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Repeated
// calls are no-ops.
func (b *Bus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sendCh, ok := b.recvToSend[ch]
	if !ok {
		return
	}
	delete(b.subs, sendCh)
	delete(b.recvToSend, ch)
	close(sendCh)
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
