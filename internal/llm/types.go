package llm

import "time"

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message for the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral generation request.
type Request struct {
	Model string

	// System is sent as the leading system message when non-empty.
	System   string
	Messages []Message

	Temperature float64
	MaxTokens   int

	// JSON asks the provider to constrain output to a JSON object.
	JSON bool
}

// Response is the unified response from any LLM provider.
type Response struct {
	Model   string
	Content string

	// Token usage (provider-neutral)
	InputTokens  int
	OutputTokens int

	TotalDuration time.Duration
}
