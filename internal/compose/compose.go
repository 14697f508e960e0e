// Package compose renders executor results as user-facing responses.
package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/executor"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/resolve"
)

// Response is the uniform outcome shape returned to callers.
type Response struct {
	Success bool        `json:"success"`
	Action  action.Kind `json:"action,omitempty"`
	Message string      `json:"message,omitempty"`

	RecordID string `json:"recordId,omitempty"`
	Link     string `json:"link,omitempty"`
	Data     any    `json:"data,omitempty"`
	Caveat   string `json:"caveat,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	Stage     string `json:"stage,omitempty"`

	MissingFields []string `json:"missingFields,omitempty"`
	UserPrompt    string   `json:"userPrompt,omitempty"`
}

// NeedsInput reports whether the user can recover by answering the
// prompt.
func (r Response) NeedsInput() bool {
	return !r.Success && len(r.MissingFields) > 0
}

var prompts = map[string]string{
	"projectId":     "Which project should this task be added to? Please provide the project ID.",
	"projectName":   "Which project should this task be added to? Please provide the project name.",
	"taskId":        "Which task should be updated? Please provide the task ID.",
	"taskName":      "Which task should be updated? Please provide the task name.",
	"taskNames":     "Which tasks does this relate to? Please provide the task names.",
	"eventId":       "Which calendar event should be updated? Please provide the event ID.",
	"eventName":     "Which calendar event should be updated? Please provide the event name.",
	"lifeDomainId":  "Which life domain does this belong to? (e.g., Health, Work, Personal, etc.)",
	"name":          "What should this item be called?",
	"title":         "What's the title for this item?",
	"startDateTime": "When should this event start? Please provide a date and time.",
	"endDateTime":   "When should this event end? Please provide a date and time.",
	"due":           "When is this due? Please provide a date.",
	"content":       "What content would you like to add?",
	"type":          "What type is this? (e.g., Note, Meeting, Decision, Daily, Weekly)",
	"status":        "What's the task status? Please choose from: Next, Blocked, Doing, Verify, Done",
	"priority":      "What's the priority? Options: P0 - Critical (urgent), P1 - High, P2 - Medium (normal), P3 - Low",
}

// FieldPrompt returns the question asked for a missing field.
func FieldPrompt(field string) string {
	if p, ok := prompts[field]; ok {
		return p
	}
	return fmt.Sprintf("Please provide the %s.", field)
}

// MissingPrompt builds the enumerated request for missing fields.
func MissingPrompt(kind action.Kind, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To %s this %s, I need:\n\n", kind.Verb(), kind.Noun())
	for i, f := range fields {
		fmt.Fprintf(&b, "%d. %s\n", i+1, FieldPrompt(f))
	}
	fmt.Fprintf(&b, "\nPlease provide this information and I'll %s it for you.", kind.Verb())
	return b.String()
}

// idNames are the user-facing names of id fields in clarification
// prompts.
var idNames = map[resolve.Class]string{
	resolve.Project: "project",
	resolve.Task:    "task",
	resolve.Event:   "event",
}

// Compose renders a result.
func Compose(res executor.Result) Response {
	switch r := res.(type) {
	case *executor.Success:
		return success(r)
	case *executor.MissingFields:
		return Response{
			Action:        r.Kind,
			Error:         "I need more information to complete this request.",
			ErrorType:     "missing_fields",
			Stage:         string(executor.StageValidate),
			MissingFields: r.Fields,
			UserPrompt:    MissingPrompt(r.Kind, r.Fields),
		}
	case *executor.Failure:
		return failure(r)
	}
	return Response{Error: fmt.Sprintf("unknown result %T", res), ErrorType: "internal"}
}

// ParseFailure is the response for action text the parser rejected.
func ParseFailure(err error) Response {
	return Response{
		Error:     err.Error(),
		ErrorType: "parse_error",
		Stage:     "parse",
	}
}

func success(s *executor.Success) Response {
	resp := Response{
		Success:  true,
		Action:   s.Kind,
		Message:  fmt.Sprintf("Successfully executed %s", s.Kind),
		RecordID: s.RecordID,
		Link:     s.Link,
	}
	if s.Kind == action.ListCalendarEvents {
		resp.Data = s.Events
		resp.Message = fmt.Sprintf("Found %d calendar events", len(s.Events))
	} else {
		resp.Data = s.Outputs
	}
	if len(s.Caveats) > 0 {
		failed := make([]string, 0, len(s.Caveats))
		for _, c := range s.Caveats {
			failed = append(failed, fmt.Sprintf("the %s step failed: %s", c.Stage, c.Message))
		}
		resp.Caveat = fmt.Sprintf("The %s was created, but %s", s.Kind.Noun(), strings.Join(failed, "; "))
	}
	return resp
}

func failure(f *executor.Failure) Response {
	resp := Response{
		Action:    f.Kind,
		Stage:     string(f.Stage),
		ErrorType: errorType(f.Err),
	}
	if f.Err != nil {
		resp.Error = f.Err.Error()
	}

	var nf *executor.NotFoundError
	if errors.As(f.Err, &nf) {
		noun := idNames[nf.Class]
		resp.Error = fmt.Sprintf("Could not find a %s matching %q. Please check the %s name or provide a specific %s ID.",
			nf.Class, nf.Name, noun, noun)
		resp.UserPrompt = resp.Error
	}
	if f.Field != "" {
		resp.MissingFields = []string{f.Field}
	}
	return resp
}

// errorType classifies a failure for callers that branch on it.
func errorType(err error) string {
	var (
		nf      *executor.NotFoundError
		toolErr *mcp.ToolError
		trErr   *mcp.TransportError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &toolErr):
		return "tool_error"
	case errors.As(err, &trErr):
		return "transport_error"
	}
	return "invalid_request"
}
