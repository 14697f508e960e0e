package executor

import (
	"fmt"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/resolve"
)

// Stage names the step of an execution.
type Stage string

const (
	StageValidate Stage = "validate"
	StageResolve  Stage = "resolve"
	StageCreate   Stage = "create"
	StagePatch    Stage = "patch"
	StageAppend   Stage = "append"
	StageInvoke   Stage = "invoke"
)

// Result is one of *Success, *MissingFields or *Failure.
type Result interface {
	ActionKind() action.Kind
	result()
}

// Output is the raw result of one tool call.
type Output struct {
	Stage  Stage           `json:"stage"`
	Tool   string          `json:"tool"`
	Result *mcp.ToolResult `json:"result"`
}

// Resolution records a name that was mapped onto an id.
type Resolution struct {
	Field string            `json:"field"`
	Name  string            `json:"name"`
	Ref   resolve.Reference `json:"ref"`
}

// Caveat describes a later phase that failed after the record was
// created. The record exists but is incomplete. A create can carry one
// caveat per failed phase.
type Caveat struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Success is a completed action.
type Success struct {
	Kind       action.Kind      `json:"action"`
	RecordID   string           `json:"recordId,omitempty"`
	DatabaseID string           `json:"databaseId,omitempty"`
	Outputs    []Output         `json:"outputs,omitempty"`
	Resolved   []Resolution     `json:"resolved,omitempty"`
	Caveats    []Caveat         `json:"caveats,omitempty"`
	Link       string           `json:"link,omitempty"`
	Events     []calendar.Event `json:"events,omitempty"`
}

// MissingFields lists parameters the user must supply before the action
// can run.
type MissingFields struct {
	Kind   action.Kind `json:"action"`
	Fields []string    `json:"missingFields"`
}

// Failure is an action that stopped at Stage. Field names the id
// parameter to ask for when resolution failed, and Query holds the name
// that did not resolve.
type Failure struct {
	Kind  action.Kind `json:"action"`
	Stage Stage       `json:"stage"`
	Field string      `json:"field,omitempty"`
	Query string      `json:"query,omitempty"`
	Err   error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failed at %s: %v", f.Kind, f.Stage, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

func (s *Success) ActionKind() action.Kind       { return s.Kind }
func (m *MissingFields) ActionKind() action.Kind { return m.Kind }
func (f *Failure) ActionKind() action.Kind       { return f.Kind }

func (*Success) result()       {}
func (*MissingFields) result() {}
func (*Failure) result()       {}

// NotFoundError reports a name that did not resolve.
type NotFoundError struct {
	Class resolve.Class
	Name  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("could not find a %s matching %q", e.Class, e.Name)
}
