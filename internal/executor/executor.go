// Package executor runs parsed actions against the document database
// and the calendar.
//
// Each execution validates params, resolves name references to ids,
// then dispatches. Document-database creates use two phases: a minimal
// create holding only the title, then a patch with everything else.
// Journal entries get a third, best-effort phase that appends their
// content to the page body. Updates are a single patch. Calendar
// actions are one tool call each; updates first fetch the existing
// event so unspecified fields are preserved.
//
// Execute never returns an error. Every outcome is a [Result].
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nugget/lifeops/internal/action"
	"github.com/nugget/lifeops/internal/calendar"
	"github.com/nugget/lifeops/internal/events"
	"github.com/nugget/lifeops/internal/mcp"
	"github.com/nugget/lifeops/internal/notion"
	"github.com/nugget/lifeops/internal/resolve"
)

// ErrNoCalendar is the failure for calendar actions when no calendar
// client is configured.
var ErrNoCalendar = errors.New("calendar is not configured")

// errNothingToUpdate is the failure for updates that carry no fields.
var errNothingToUpdate = errors.New("no fields to update")

// Documents issues document-database writes. *notion.Client satisfies
// it.
type Documents interface {
	CreatePage(ctx context.Context, parentID, title string) (string, *mcp.ToolResult, error)
	UpdatePage(ctx context.Context, pageID string, props notion.Patch) (*mcp.ToolResult, error)
	AppendContent(ctx context.Context, pageID, markdown string) (*mcp.ToolResult, error)
}

// Calendar issues calendar calls. *calendar.Client satisfies it.
type Calendar interface {
	ListInput(ctx context.Context, in *calendar.EventInput) ([]calendar.Event, *mcp.ToolResult, error)
	Find(ctx context.Context, id string, w calendar.Window) (*calendar.Event, error)
	Create(ctx context.Context, in *calendar.EventInput) (*mcp.ToolResult, string, error)
	Update(ctx context.Context, eventID string, in *calendar.EventInput, existing *calendar.Event) (*mcp.ToolResult, string, error)
	Delete(ctx context.Context, eventID string) (*mcp.ToolResult, error)
}

// Resolver maps names to ids. *resolve.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, class resolve.Class, name string) (resolve.Reference, bool)
	ResolveEvent(ctx context.Context, name string, w calendar.Window) (resolve.Reference, bool)
}

// eventIDPaths are the places a created event id has been seen.
var eventIDPaths = []string{
	"data.response_data.id",
	"response_data.id",
	"data.id",
	"id",
}

// Executor runs actions. It holds no per-request state and is safe for
// concurrent use.
type Executor struct {
	docs     Documents
	cal      Calendar
	resolver Resolver
	dbs      notion.Databases
	bus      *events.Bus
	logger   *slog.Logger

	now    func() time.Time
	newKey func() string
}

// New creates an executor. cal may be nil, in which case calendar
// actions fail at the invoke stage.
func New(docs Documents, cal Calendar, resolver Resolver, dbs notion.Databases, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		docs:     docs,
		cal:      cal,
		resolver: resolver,
		dbs:      dbs,
		logger:   logger.With("component", "executor"),
		now:      time.Now,
		newKey:   newIdempotencyKey,
	}
}

// SetEventBus routes execution events to bus.
func (e *Executor) SetEventBus(bus *events.Bus) {
	e.bus = bus
}

func newIdempotencyKey() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Execute runs one action to completion or to its first unrecoverable
// failure.
func (e *Executor) Execute(ctx context.Context, act action.Action) Result {
	start := e.now()
	log := e.logger.With("action", string(act.Kind))
	e.bus.Emit(events.SourceExecutor, events.KindActionStart, map[string]any{
		"action": string(act.Kind),
	})

	var res Result
	if act.Kind.Calendar() {
		res = e.calendarAction(ctx, act)
	} else {
		res = e.documentAction(ctx, act)
	}

	data := map[string]any{
		"action":     string(act.Kind),
		"elapsed_ms": e.now().Sub(start).Milliseconds(),
	}
	switch r := res.(type) {
	case *Success:
		data["outcome"] = events.OutcomeSuccess
		data["record_id"] = r.RecordID
		if len(r.Caveats) > 0 {
			stages := make([]string, 0, len(r.Caveats))
			for _, c := range r.Caveats {
				stages = append(stages, string(c.Stage))
				log.Warn("action completed with caveat", "record_id", r.RecordID, "stage", c.Stage, "error", c.Err)
			}
			data["stage"] = strings.Join(stages, ",")
		} else {
			log.Info("action completed", "record_id", r.RecordID)
		}
	case *MissingFields:
		data["outcome"] = events.OutcomeMissing
		log.Info("action needs more information", "fields", r.Fields)
	case *Failure:
		data["outcome"] = events.OutcomeFailure
		data["stage"] = string(r.Stage)
		log.Warn("action failed", "stage", r.Stage, "error", r.Err)
	}
	e.bus.Emit(events.SourceExecutor, events.KindActionComplete, data)
	return res
}

// Validate reports the parameters act still needs before it can run,
// or nil when its requirements are met. Absent required fields and
// fields holding MISSING_INFO are reported together, in the order
// Execute would report them.
func Validate(act action.Action) *MissingFields {
	var reqs []action.Requirement
	if act.Kind.Calendar() {
		reqs = calendar.Requirements(act.Kind)
	} else {
		reqs = notion.Requirements(act.Kind)
	}
	if missing := act.Params.Missing(reqs); len(missing) > 0 {
		return &MissingFields{Kind: act.Kind, Fields: missing}
	}
	return nil
}

// invalid converts a decode error into MissingFields or a validate
// failure.
func invalid(kind action.Kind, err error) Result {
	var ve *action.ValidationError
	if errors.As(err, &ve) {
		return &MissingFields{Kind: kind, Fields: ve.Fields}
	}
	return &Failure{Kind: kind, Stage: StageValidate, Err: err}
}

// track wraps one tool call with events.
func (e *Executor) track(kind action.Kind, stage Stage, tool string, fn func() error) error {
	start := e.now()
	e.bus.Emit(events.SourceExecutor, events.KindToolCall, map[string]any{
		"action": string(kind),
		"stage":  string(stage),
		"tool":   tool,
	})
	err := fn()
	e.bus.Emit(events.SourceExecutor, events.KindToolDone, map[string]any{
		"action":      string(kind),
		"stage":       string(stage),
		"tool":        tool,
		"ok":          err == nil,
		"duration_ms": e.now().Sub(start).Milliseconds(),
	})
	return err
}

// lookup resolves one name, publishing the attempt.
func (e *Executor) lookup(kind action.Kind, class resolve.Class, name string, resolveFn func() (resolve.Reference, bool)) (resolve.Reference, bool) {
	ref, ok := resolveFn()
	e.bus.Emit(events.SourceExecutor, events.KindResolved, map[string]any{
		"action": string(kind),
		"class":  class.String(),
		"name":   name,
		"id":     ref.ID,
		"score":  ref.Score,
		"ok":     ok,
	})
	return ref, ok
}

func (e *Executor) resolveName(ctx context.Context, kind action.Kind, class resolve.Class, name string, resolved *[]Resolution) (string, *Failure) {
	ref, ok := e.lookup(kind, class, name, func() (resolve.Reference, bool) {
		return e.resolver.Resolve(ctx, class, name)
	})
	if !ok {
		return "", &Failure{
			Kind:  kind,
			Stage: StageResolve,
			Field: class.IDField(),
			Query: name,
			Err:   &NotFoundError{Class: class, Name: name},
		}
	}
	*resolved = append(*resolved, Resolution{Field: class.IDField(), Name: name, Ref: ref})
	return ref.ID, nil
}

// resolveRecord fills ids for the name references a record carries.
func (e *Executor) resolveRecord(ctx context.Context, kind action.Kind, rec notion.Record) ([]Resolution, *Failure) {
	var resolved []Resolution
	switch r := rec.(type) {
	case *notion.Task:
		if r.ProjectID == "" && r.ProjectName != "" {
			id, f := e.resolveName(ctx, kind, resolve.Project, r.ProjectName, &resolved)
			if f != nil {
				return nil, f
			}
			r.ProjectID = id
		}
		if kind == action.UpdateTask && r.ID == "" && r.LookupName != "" {
			id, f := e.resolveName(ctx, kind, resolve.Task, r.LookupName, &resolved)
			if f != nil {
				return nil, f
			}
			r.ID = id
		}

	case *notion.Journal:
		if r.ProjectID == "" && r.ProjectName != "" {
			id, f := e.resolveName(ctx, kind, resolve.Project, r.ProjectName, &resolved)
			if f != nil {
				return nil, f
			}
			r.ProjectID = id
		}
		seen := make(map[string]bool, len(r.ActionItemIDs))
		for _, id := range r.ActionItemIDs {
			seen[id] = true
		}
		for _, name := range r.TaskNames {
			ref, ok := e.lookup(kind, resolve.Task, name, func() (resolve.Reference, bool) {
				return e.resolver.Resolve(ctx, resolve.Task, name)
			})
			if !ok {
				e.logger.Warn("skipping unresolved action item", "action", string(kind), "task_name", name)
				continue
			}
			resolved = append(resolved, Resolution{Field: "actionItemIds", Name: name, Ref: ref})
			if !seen[ref.ID] {
				seen[ref.ID] = true
				r.ActionItemIDs = append(r.ActionItemIDs, ref.ID)
			}
		}
	}
	return resolved, nil
}

func (e *Executor) documentAction(ctx context.Context, act action.Action) Result {
	kind := act.Kind
	rec, err := notion.Decode(kind, act.Params)
	if err != nil {
		return invalid(kind, err)
	}

	resolved, f := e.resolveRecord(ctx, kind, rec)
	if f != nil {
		return f
	}

	if kind.Create() {
		return e.create(ctx, kind, rec, resolved)
	}
	return e.update(ctx, kind, rec, resolved)
}

// create runs the two-phase create, plus the content append for
// journal entries.
func (e *Executor) create(ctx context.Context, kind action.Kind, rec notion.Record, resolved []Resolution) Result {
	dbID := rec.Database(e.dbs)
	if dbID == "" {
		return &Failure{Kind: kind, Stage: StageValidate, Err: fmt.Errorf("no database configured for %s", kind.Noun())}
	}

	var (
		pageID  string
		created *mcp.ToolResult
	)
	createCtx := mcp.WithIdempotencyKey(ctx, e.newKey())
	err := e.track(kind, StageCreate, notion.ToolCreatePage, func() error {
		var err error
		pageID, created, err = e.docs.CreatePage(createCtx, dbID, rec.TitleText())
		return err
	})
	if err != nil {
		return &Failure{Kind: kind, Stage: StageCreate, Err: err}
	}

	success := &Success{
		Kind:       kind,
		RecordID:   pageID,
		DatabaseID: dbID,
		Outputs:    []Output{{Stage: StageCreate, Tool: notion.ToolCreatePage, Result: created}},
		Resolved:   resolved,
	}

	if patch := rec.Properties().Without(rec.TitleProperty()); len(patch) > 0 {
		var patched *mcp.ToolResult
		err := e.track(kind, StagePatch, notion.ToolUpdatePage, func() error {
			var err error
			patched, err = e.docs.UpdatePage(ctx, pageID, patch)
			return err
		})
		if err != nil {
			// The page exists, so the body append below still runs.
			success.Caveats = append(success.Caveats, Caveat{Stage: StagePatch, Message: err.Error(), Err: err})
		} else {
			success.Outputs = append(success.Outputs, Output{Stage: StagePatch, Tool: notion.ToolUpdatePage, Result: patched})
		}
	}

	if j, ok := rec.(*notion.Journal); ok && kind == action.LogNote && j.Content != "" {
		var appended *mcp.ToolResult
		err := e.track(kind, StageAppend, notion.ToolAppendContent, func() error {
			var err error
			appended, err = e.docs.AppendContent(ctx, pageID, j.Content)
			return err
		})
		if err != nil {
			success.Caveats = append(success.Caveats, Caveat{Stage: StageAppend, Message: err.Error(), Err: err})
			return success
		}
		if appended != nil {
			success.Outputs = append(success.Outputs, Output{Stage: StageAppend, Tool: notion.ToolAppendContent, Result: appended})
		}
	}
	return success
}

// update sends one patch holding only the supplied fields.
func (e *Executor) update(ctx context.Context, kind action.Kind, rec notion.Record, resolved []Resolution) Result {
	target := rec.Target()
	if target == "" {
		return &Failure{Kind: kind, Stage: StageValidate, Err: fmt.Errorf("no %s id to update", kind.Noun())}
	}
	patch := rec.Properties()
	if len(patch) == 0 {
		return &Failure{Kind: kind, Stage: StageValidate, Err: errNothingToUpdate}
	}

	var res *mcp.ToolResult
	err := e.track(kind, StagePatch, notion.ToolUpdatePage, func() error {
		var err error
		res, err = e.docs.UpdatePage(ctx, target, patch)
		return err
	})
	if err != nil {
		return &Failure{Kind: kind, Stage: StagePatch, Err: err}
	}
	return &Success{
		Kind:       kind,
		RecordID:   target,
		DatabaseID: rec.Database(e.dbs),
		Outputs:    []Output{{Stage: StagePatch, Tool: notion.ToolUpdatePage, Result: res}},
		Resolved:   resolved,
	}
}
